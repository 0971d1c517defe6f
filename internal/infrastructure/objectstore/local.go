package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// LocalStore хранит изображения в файловой системе; каталог раздаётся по
// publicBase статическим обработчиком.
type LocalStore struct {
	rootPath       string
	publicBase     string
	maxUploadBytes int64
	log            logrus.FieldLogger
	now            func() time.Time
}

func NewLocalStore(rootPath, publicBase string, maxUploadMB int64, log logrus.FieldLogger) (*LocalStore, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("objectstore: не удалось создать каталог %s: %w", rootPath, err)
	}
	return &LocalStore{
		rootPath:       rootPath,
		publicBase:     publicBase,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
		log:            log,
		now:            time.Now,
	}, nil
}

func (s *LocalStore) Root() string {
	return s.rootPath
}

// Store пишет файл через временный файл и переименование.
func (s *LocalStore) Store(ctx context.Context, data []byte, originalName, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := newObjectKey(s.now(), originalName, mimeType)
	targetPath := filepath.Join(s.rootPath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return "", fmt.Errorf("objectstore: не удалось создать каталог: %w", err)
	}

	tempPath := targetPath + ".tmp"
	if err := s.writeTemp(tempPath, data); err != nil {
		_ = os.Remove(tempPath)
		return "", err
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("objectstore: не удалось переименовать файл: %w", err)
	}

	return referenceFor(s.publicBase, key), nil
}

// writeTemp пишет не более maxUploadBytes байт и закрывает файл ровно один раз.
func (s *LocalStore) writeTemp(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("objectstore: не удалось создать файл: %w", err)
	}

	limited := io.LimitedReader{R: bytes.NewReader(data), N: s.maxUploadBytes + 1}
	written, copyErr := io.Copy(f, &limited)
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		return fmt.Errorf("objectstore: ошибка записи файла: %w", copyErr)
	case written > s.maxUploadBytes:
		return fmt.Errorf("objectstore: размер файла превышает лимит %d байт", s.maxUploadBytes)
	case closeErr != nil:
		return fmt.Errorf("objectstore: ошибка закрытия файла: %w", closeErr)
	}
	return nil
}

func (s *LocalStore) Open(ctx context.Context, reference string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := keyFromReference(s.publicBase, reference)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.rootPath, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	return data, err
}

func (s *LocalStore) Delete(ctx context.Context, reference string) bool {
	key, err := keyFromReference(s.publicBase, reference)
	if err != nil {
		s.log.WithField("reference", reference).Warn("objectstore: чужая ссылка, удаление пропущено")
		return false
	}
	if err := os.Remove(filepath.Join(s.rootPath, filepath.FromSlash(key))); err != nil {
		s.log.WithField("reference", reference).WithError(err).Warn("objectstore: не удалось удалить файл")
		return false
	}
	return true
}
