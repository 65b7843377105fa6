// Package objectstore implements jcl.ArtifactStore on S3-compatible object
// storage (MinIO, AWS S3, R2) with minio-go.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nevindra/jcl"
)

// Config locates the bucket that receives artifacts.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Prefix is prepended to every object key. Default: "runs".
	Prefix string
}

// Store archives run artifacts under <prefix>/<run id>/<name>.
type Store struct {
	client *minio.Client
	bucket string
	region string
	prefix string

	initOnce sync.Once
	initErr  error
}

var _ jcl.ArtifactStore = (*Store)(nil)

// New validates cfg and builds a client. No request is made until the first
// artifact is written.
func New(cfg Config) (*Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("objectstore: endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("objectstore: access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("objectstore: bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	prefix := strings.Trim(strings.TrimSpace(cfg.Prefix), "/")
	if prefix == "" {
		prefix = "runs"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: init client: %w", err)
	}
	return &Store{client: client, bucket: bucket, region: region, prefix: prefix}, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// PutArtifact writes data as <prefix>/<runID>/<name>.
func (s *Store) PutArtifact(ctx context.Context, runID, name string, data []byte) error {
	key, err := s.objectKey(runID, name)
	if err != nil {
		return err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("objectstore: ensure bucket: %w", err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType(name),
	})
	if err != nil {
		return fmt.Errorf("objectstore: put %s: %w", key, err)
	}
	return nil
}

// GetArtifact reads one artifact back. A missing object yields jcl.ErrNotFound.
func (s *Store) GetArtifact(ctx context.Context, runID, name string) ([]byte, error) {
	key, err := s.objectKey(runID, name)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("objectstore: get %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		code := minio.ToErrorResponse(err).Code
		if code == "NoSuchKey" || code == "NoSuchBucket" {
			return nil, fmt.Errorf("objectstore: get %s: %w", key, jcl.ErrNotFound)
		}
		return nil, fmt.Errorf("objectstore: get %s: %w", key, err)
	}
	return data, nil
}

// ListArtifacts returns the artifact names stored for runID, sorted.
func (s *Store) ListArtifacts(ctx context.Context, runID string) ([]string, error) {
	dir, err := s.objectKey(runID, "")
	if err != nil {
		return nil, err
	}
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    dir,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("objectstore: list %s: %w", dir, obj.Err)
		}
		if obj.Key != "" {
			names = append(names, strings.TrimPrefix(obj.Key, dir))
		}
	}
	sort.Strings(names)
	return names, nil
}

// objectKey builds the key for name under runID. An empty name yields the
// run's directory prefix with a trailing slash.
func (s *Store) objectKey(runID, name string) (string, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" || strings.ContainsAny(runID, "/\\") {
		return "", fmt.Errorf("objectstore: invalid run id %q", runID)
	}
	dir := s.prefix + "/" + runID + "/"
	if name == "" {
		return dir, nil
	}
	clean := strings.TrimLeft(path.Clean("/"+strings.TrimSpace(name)), "/")
	if clean == "" {
		return "", fmt.Errorf("objectstore: invalid artifact name %q", name)
	}
	return dir + clean, nil
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".json":
		return "application/json"
	case ".c", ".txt", ".log":
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}
