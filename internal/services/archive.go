package services

import (
	"bytes"
	"context"
	"discord-store-bot/config"
	"fmt"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"io"
	"os"
	"path/filepath"
)

// Archiver складывает файлы (бэкапы, стенограммы) во внешнее хранилище
type Archiver interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
}

// S3Archiver работает с любым S3-совместимым хранилищем (AWS, R2, MinIO)
type S3Archiver struct {
	client *s3.Client
	bucket string
}

func NewS3Archiver(ctx context.Context, cfg config.ArchiveConfig) (*S3Archiver, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithEndpointResolver(aws.EndpointResolverFunc(
			func(service, region string) (aws.Endpoint, error) {
				return aws.Endpoint{URL: cfg.Endpoint}, nil
			}),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive config: %w", err)
	}
	return &S3Archiver{client: s3.NewFromConfig(awsCfg), bucket: cfg.Bucket}, nil
}

func (a *S3Archiver) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// ArchiveFile загружает локальный файл под ключом prefix/<имя файла>
func ArchiveFile(ctx context.Context, a Archiver, prefix, path, contentType string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	key := prefix + "/" + filepath.Base(path)
	if err := a.Put(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return "", err
	}
	return key, nil
}
