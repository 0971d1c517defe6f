package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL — базовый адрес ссылок; по умолчанию http(s)://<endpoint>/<bucket>.
	PublicURL string
}

// S3Store хранит изображения в S3-совместимом бакете.
type S3Store struct {
	client     *minio.Client
	bucket     string
	region     string
	publicBase string
	log        logrus.FieldLogger
	now        func() time.Time

	mu          sync.Mutex
	bucketReady bool
}

func NewS3Store(cfg S3Config, log logrus.FieldLogger) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("objectstore: s3 endpoint обязателен")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("objectstore: s3 access key и secret key обязательны")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("objectstore: s3 bucket обязателен")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: не удалось создать s3 клиент: %w", err)
	}

	publicBase := strings.TrimRight(cfg.PublicURL, "/")
	if publicBase == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicBase = scheme + "://" + endpoint + "/" + bucket
	}

	return &S3Store{
		client:     client,
		bucket:     bucket,
		region:     region,
		publicBase: publicBase,
		log:        log,
		now:        time.Now,
	}, nil
}

// ensureBucket создаёт бакет при первом обращении. Неудачная попытка
// повторяется при следующем вызове.
func (s *S3Store) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bucketReady {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return err
		}
	}
	s.bucketReady = true
	return nil
}

func (s *S3Store) Store(ctx context.Context, data []byte, originalName, mimeType string) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("objectstore: бакет недоступен: %w", err)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	key := newObjectKey(s.now(), originalName, mimeType)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: mimeType,
		UserMetadata: map[string]string{
			"original-name": sanitizeFilename(originalName),
		},
	})
	if err != nil {
		return "", fmt.Errorf("objectstore: не удалось загрузить объект: %w", err)
	}
	return referenceFor(s.publicBase, key), nil
}

func (s *S3Store) Open(ctx context.Context, reference string) ([]byte, error) {
	key, err := keyFromReference(s.publicBase, reference)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *S3Store) Delete(ctx context.Context, reference string) bool {
	key, err := keyFromReference(s.publicBase, reference)
	if err != nil {
		s.log.WithField("reference", reference).Warn("objectstore: чужая ссылка, удаление пропущено")
		return false
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		s.log.WithField("reference", reference).WithError(err).Warn("objectstore: не удалось удалить объект")
		return false
	}
	return true
}
