package statestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of *s3.Client the store calls.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

const s3ExpiresMeta = "expires-at"

// S3Store keeps one object per entry. The expiry travels as object
// metadata; expired objects are hidden by Load and removed by Cleanup.
type S3Store struct {
	client S3API
	bucket string
	prefix string
	closed atomic.Bool
	now    func() time.Time
}

// NewS3Store stores entries under bucket/prefix.
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := statestore.NewS3Store(s3.NewFromConfig(cfg), "my-bucket", "history/")
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix, now: time.Now}
}

func (s *S3Store) key(id string) string {
	return s.prefix + id
}

func (s *S3Store) Save(ctx context.Context, id string, data []byte, expiresAt time.Time) error {
	if s.closed.Load() {
		return ErrClosed
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(id)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			s3ExpiresMeta: strconv.FormatInt(expiresAt.UnixMilli(), 10),
		},
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", id, err)
	}
	return nil
}

func (s *S3Store) get(ctx context.Context, id string) ([]byte, time.Time, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, fmt.Errorf("s3 get %s: %w", id, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, time.Time{}, err
	}
	ms, err := strconv.ParseInt(out.Metadata[s3ExpiresMeta], 10, 64)
	if err != nil {
		return nil, time.Time{}, nil
	}
	return data, time.UnixMilli(ms), nil
}

func (s *S3Store) Load(ctx context.Context, id string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	data, exp, err := s.get(ctx, id)
	if err != nil || data == nil || !s.now().Before(exp) {
		return nil, err
	}
	return data, nil
}

func (s *S3Store) Delete(ctx context.Context, id string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	return err
}

// Touch rewrites the object since S3 metadata cannot change in place.
func (s *S3Store) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	if s.closed.Load() {
		return ErrClosed
	}
	data, _, err := s.get(ctx, id)
	if err != nil || data == nil {
		return err
	}
	return s.Save(ctx, id, data, expiresAt)
}

// SaveAll writes entries one by one; S3 has no multi-object put.
func (s *S3Store) SaveAll(ctx context.Context, entries map[string]Data) error {
	for id, d := range entries {
		if err := s.Save(ctx, id, d.Data, d.ExpiresAt); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup deletes expired objects under the prefix and returns how many it
// removed.
func (s *S3Store) Cleanup(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	var ids []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				ids = append(ids, (*obj.Key)[len(s.prefix):])
			}
		}
	}

	n := 0
	now := s.now()
	for _, id := range ids {
		data, exp, err := s.get(ctx, id)
		if err != nil {
			return n, err
		}
		if data != nil && now.Before(exp) {
			continue
		}
		if err := s.Delete(ctx, id); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *S3Store) Close() error {
	s.closed.Store(true)
	return nil
}
