// Package publish uploads a finished report directory to S3-compatible storage.
package publish

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/lamim/vecplot/internal/config"
)

// Publisher uploads report files to one bucket.
type Publisher struct {
	client *minio.Client
	bucket string
	prefix string
}

// New creates a publisher from the publish config. Credentials are read from
// the environment variables the config names.
func New(cfg config.PublishConfig) (*Publisher, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("publish requires an endpoint and a bucket")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(os.Getenv(cfg.AccessKeyEnv), os.Getenv(cfg.SecretKeyEnv), ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *minio.Client, bucket, prefix string) *Publisher {
	return &Publisher{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// Key returns the object key for a file of a report directory. Reports keep
// their session directory name so runs never overwrite each other.
func (p *Publisher) Key(reportDir, rel string) string {
	return path.Join(p.prefix, filepath.Base(reportDir), filepath.ToSlash(rel))
}

// Upload is one uploaded report file.
type Upload struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// Publish uploads every regular file under reportDir, creating the bucket
// when it does not exist yet. Uploads happen in lexical path order.
func (p *Publisher) Publish(ctx context.Context, reportDir string) ([]Upload, error) {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", p.bucket, err)
	}
	if !exists {
		if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", p.bucket, err)
		}
	}

	files, err := reportFiles(reportDir)
	if err != nil {
		return nil, err
	}

	uploads := make([]Upload, 0, len(files))
	for _, rel := range files {
		key := p.Key(reportDir, rel)
		info, err := p.client.FPutObject(ctx, p.bucket, key, filepath.Join(reportDir, rel), minio.PutObjectOptions{
			ContentType: ContentType(rel),
		})
		if err != nil {
			return uploads, fmt.Errorf("failed to upload %s: %w", rel, err)
		}
		uploads = append(uploads, Upload{Key: key, Size: info.Size})
	}
	return uploads, nil
}

// reportFiles lists the regular files under dir relative to it.
func reportFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list report files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// ContentType guesses the MIME type of a report file from its extension.
func ContentType(name string) string {
	switch filepath.Ext(name) {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".json":
		return "application/json"
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
