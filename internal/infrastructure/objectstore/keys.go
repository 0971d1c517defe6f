package objectstore

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const keyPrefix = "claims"

var (
	ErrForeignReference = errors.New("objectstore: ссылка не принадлежит хранилищу")
	ErrObjectNotFound   = errors.New("objectstore: объект не найден")
)

var mimeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/heif": ".heif",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
}

// newObjectKey строит ключ вида claims/<yyyy>/<mm>/<uuid><ext>. Исходное имя
// файла используется только для расширения.
func newObjectKey(now time.Time, originalName, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(sanitizeFilename(originalName)))
	if known, ok := mimeExtensions[mimeType]; ok {
		ext = known
	}
	if len(ext) > 8 {
		ext = ""
	}
	return path.Join(keyPrefix, fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", int(now.Month())), uuid.NewString()+ext)
}

// referenceFor и keyFromReference переводят ключ в публичную ссылку и обратно.
func referenceFor(publicBase, key string) string {
	return strings.TrimRight(publicBase, "/") + "/" + key
}

func keyFromReference(publicBase, reference string) (string, error) {
	key, ok := strings.CutPrefix(reference, strings.TrimRight(publicBase, "/")+"/")
	if !ok || key == "" {
		return "", ErrForeignReference
	}
	clean := path.Clean(key)
	if clean != key || !strings.HasPrefix(clean, keyPrefix+"/") || strings.Contains(clean, "..") {
		return "", ErrForeignReference
	}
	return clean, nil
}

// sanitizeFilename удаляет потенциально опасные символы.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "")
	if name == "" || name == "." || name == "/" {
		name = "image"
	}
	return name
}
