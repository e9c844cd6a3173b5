package mediastore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"crosspost/infrastructure/configuration"
)

// Store puts uploaded videos into S3 and hands back the publicly reachable
// URL that provider servers pull media from.
type Store struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

func New(ctx context.Context, sc configuration.Storage) (*Store, error) {
	if sc.Bucket == "" || sc.Region == "" {
		return nil, errors.New("media storage not configured: bucket and region required")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(sc.Region)}
	if sc.AccessKey != "" && sc.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(sc.AccessKey, sc.SecretKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Store{
		client:        s3.NewFromConfig(cfg),
		bucket:        sc.Bucket,
		publicBaseURL: strings.TrimSuffix(sc.PublicBaseURL, "/"),
	}, nil
}

// Put stores the binary under a fresh key and returns its public URL.
func (s *Store) Put(ctx context.Context, fileName, contentType string, data []byte) (string, error) {
	ext := path.Ext(fileName)
	if ext == "" {
		ext = ".mp4"
	}
	key := fmt.Sprintf("videos/%s%s", uuid.NewString(), ext)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	return s.publicBaseURL + "/" + key, nil
}
