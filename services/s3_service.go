package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"peerlearn_server/apperrors"
)

// Presigner is the subset of *s3.PresignClient used for avatar URLs.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// MediaService hands out short-lived S3 URLs for profile pictures.
type MediaService struct {
	presigner Presigner
	bucket    string
	ttl       time.Duration
	now       func() time.Time
}

// NewS3MediaService builds a MediaService from the default AWS credential chain.
func NewS3MediaService(ctx context.Context, region, bucket string, ttl time.Duration) (*MediaService, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewMediaService(s3.NewPresignClient(s3.NewFromConfig(cfg)), bucket, ttl), nil
}

func NewMediaService(presigner Presigner, bucket string, ttl time.Duration) *MediaService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MediaService{presigner: presigner, bucket: bucket, ttl: ttl, now: time.Now}
}

// UploadURL generates a presigned URL for uploading a file and returns it
// with the object key the client should store as its avatar reference.
func (m *MediaService) UploadURL(ctx context.Context, fileName, fileType string) (string, string, error) {
	if fileName == "" || fileType == "" {
		return "", "", apperrors.InvalidArg("fileName and fileType are required")
	}
	key := "profile-pics/" + m.now().UTC().Format("20060102150405") + "-" + path.Base(fileName)

	req, err := m.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(fileType),
	}, s3.WithPresignExpires(m.ttl))
	if err != nil {
		return "", "", apperrors.Storage("presign upload", err)
	}
	return req.URL, key, nil
}

// ReadURL generates a presigned URL for reading an object. References that
// are already absolute URLs are returned unchanged.
func (m *MediaService) ReadURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", apperrors.InvalidArg("key is required")
	}
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key, nil
	}

	req, err := m.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(m.ttl))
	if err != nil {
		return "", apperrors.Storage("presign read", err)
	}
	return req.URL, nil
}
