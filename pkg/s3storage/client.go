// Package s3storage — архив синтезированной речи в S3-совместимом хранилище.
package s3storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ilkoid/pi-llama/pkg/config"
	"github.com/ilkoid/pi-llama/pkg/utils"
)

// ErrDisabled — архив не настроен (нет endpoint или bucket).
var ErrDisabled = errors.New("s3 archive is not configured")

// ClientInterface определяет интерфейс для S3 клиента.
// Используется для мокания в тестах и внедрения зависимостей.
type ClientInterface interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]StoredObject, error)
}

// Client — тонкая обёртка над minio с префиксом ключей.
type Client struct {
	api    *minio.Client
	bucket string
	prefix string
}

// Проверка что Client реализует ClientInterface
var _ ClientInterface = (*Client)(nil)

// StoredObject - сырой объект из S3
type StoredObject struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// New создает клиент, используя наш конфиг
func New(cfg config.S3Config) (*Client, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}

	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	return &Client{
		api:    minioClient,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Bucket возвращает имя бакета.
func (c *Client) Bucket() string {
	return c.bucket
}

// Upload кладёт data под ключ prefix/key и возвращает полный ключ.
func (c *Client) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	full := ObjectKey(c.prefix, key)

	info, err := c.api.PutObject(ctx, c.bucket, full, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", full, err)
	}

	utils.Info("S3 object uploaded", "bucket", c.bucket, "key", full, "size", info.Size)
	return full, nil
}

// Download скачивает объект целиком в память. key — полный ключ,
// как его вернул Upload или List.
func (c *Client) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.api.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, obj); err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

// List возвращает все объекты под prefix/sub (рекурсивно).
func (c *Client) List(ctx context.Context, sub string) ([]StoredObject, error) {
	prefix := ObjectKey(c.prefix, sub)
	// Нормализация префикса (добавляем слеш, если это "папка")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var objects []StoredObject
	opts := minio.ListObjectsOptions{Prefix: prefix, Recursive: true}
	for obj := range c.api.ListObjects(ctx, c.bucket, opts) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		// Пропускаем саму "папку"
		if obj.Key == prefix {
			continue
		}
		objects = append(objects, StoredObject{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return objects, nil
}

// ObjectKey склеивает префикс и ключ через "/", без ведущего слеша.
func ObjectKey(prefix, key string) string {
	joined := path.Join(strings.Trim(prefix, "/"), strings.TrimLeft(key, "/"))
	if joined == "." {
		return ""
	}
	return joined
}
