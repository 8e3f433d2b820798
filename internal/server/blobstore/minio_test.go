package blobstore

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/common"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMinio struct {
	putErr    error
	getErr    error
	removeErr error
	existsErr error
	exists    bool
	removed   []string
}

func (f *fakeMinio) PresignedPutObject(ctx context.Context, bucket, key string, expires time.Duration) (*url.URL, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &url.URL{Scheme: "http", Host: "minio:9000", Path: "/" + bucket + "/" + key, RawQuery: "X-Amz-Expires=" + expires.String()}, nil
}

func (f *fakeMinio) PresignedGetObject(ctx context.Context, bucket, key string, expires time.Duration, _ url.Values) (*url.URL, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &url.URL{Scheme: "http", Host: "minio:9000", Path: "/" + bucket + "/" + key}, nil
}

func (f *fakeMinio) RemoveObject(ctx context.Context, bucket, key string, _ minio.RemoveObjectOptions) error {
	f.removed = append(f.removed, key)
	return f.removeErr
}

func (f *fakeMinio) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return f.exists, f.existsErr
}

var _ minioAPI = (*minio.Client)(nil)

func TestNewMinioStore(t *testing.T) {
	s, err := NewMinioStore(MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "shares"})
	require.NoError(t, err)
	assert.Equal(t, "minio", s.Name())

	_, err = NewMinioStore(MinioConfig{Endpoint: "localhost:9000"})
	assert.Error(t, err)
}

func TestMinioStore_URLs(t *testing.T) {
	s := &MinioStore{bucket: "shares", client: &fakeMinio{}}

	put, err := s.PutURL(context.Background(), "owners/o/f", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000/shares/owners/o/f?X-Amz-Expires=5m0s", put)

	get, err := s.GetURL(context.Background(), "owners/o/f", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000/shares/owners/o/f", get)
}

func TestMinioStore_URLErrors(t *testing.T) {
	s := &MinioStore{bucket: "shares", client: &fakeMinio{putErr: errors.New("p"), getErr: errors.New("g")}}

	_, err := s.PutURL(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, common.ErrStorage)
	_, err = s.GetURL(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, common.ErrStorage)
}

func TestMinioStore_Delete(t *testing.T) {
	f := &fakeMinio{}
	s := &MinioStore{bucket: "shares", client: f}

	require.NoError(t, s.Delete(context.Background(), "k1"))

	f.removeErr = minio.ErrorResponse{Code: "NoSuchKey"}
	require.NoError(t, s.Delete(context.Background(), "k2"))

	f.removeErr = errors.New("down")
	assert.ErrorIs(t, s.Delete(context.Background(), "k3"), common.ErrStorage)

	assert.Equal(t, []string{"k1", "k2", "k3"}, f.removed)
}

func TestMinioStore_IsReady(t *testing.T) {
	f := &fakeMinio{exists: true}
	s := &MinioStore{bucket: "shares", client: f}
	require.NoError(t, s.IsReady(context.Background()))

	f.exists = false
	assert.Error(t, s.IsReady(context.Background()))

	f.existsErr = errors.New("unreachable")
	assert.EqualError(t, s.IsReady(context.Background()), "unreachable")
}
