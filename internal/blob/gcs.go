package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

// GCSStore writes objects to a Google Cloud Storage bucket.
type GCSStore struct {
	svc    *storage.Service
	bucket string
}

// NewGCSStore connects to Cloud Storage. An empty credentialsFile uses
// application default credentials.
func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}
	return &GCSStore{svc: svc, bucket: bucket}, nil
}

// Put uploads r as object key, replacing any previous version.
func (s *GCSStore) Put(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	obj := &storage.Object{
		Name:         key,
		ContentType:  contentType,
		CacheControl: "no-cache",
	}
	_, err := s.svc.Objects.Insert(s.bucket, obj).
		Media(r, googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("upload %s to bucket %s: %w", key, s.bucket, err)
	}
	return ObjectURL(s.bucket, key), nil
}

// ObjectURL is the public URL of an object in a bucket.
func ObjectURL(bucket, key string) string {
	return "https://storage.googleapis.com/" + bucket + "/" + (&url.URL{Path: key}).EscapedPath()
}
