package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	sc "github.com/spacetask/spacetask/internal/server/config"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}

	now = time.Now
)

var imageContentTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// ImageUpload is a one-shot upload slot. Key is the image reference to pass
// to Submit once the PUT to URL succeeds.
type ImageUpload struct {
	Key         string
	URL         string
	ContentType string
	ExpiresAt   time.Time
}

// UploadService hands out presigned URLs against the S3-compatible proof
// bucket. The server never sees image bytes.
type UploadService struct {
	config *sc.Config
}

func NewUploadService(config *sc.Config) *UploadService {
	return &UploadService{config: config}
}

func storageKey(userID, ext string, t time.Time) string {
	return fmt.Sprintf("proofs/%s/%d/%02d/%02d/%s.%s", userID, t.Year(), t.Month(), t.Day(), uuid.New(), ext)
}

func (s *UploadService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// PresignImageUpload reserves a key for an image named fileName and returns
// a presigned PUT for it. Only png, jpg, jpeg, gif and webp are accepted.
func (s *UploadService) PresignImageUpload(ctx context.Context, userID, fileName string) (*ImageUpload, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(fileName), "."))
	contentType, ok := imageContentTypes[ext]
	if !ok {
		return nil, invalid("unsupported image type %q", ext)
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, err
	}

	bucket := s.config.S3Bucket
	issued := now()
	key := storageKey(userID, ext, issued)

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: &contentType,
	}, s3.WithPresignExpires(s.config.UploadURLValidityDuration))
	if err != nil {
		return nil, err
	}

	return &ImageUpload{
		Key:         key,
		URL:         req.URL,
		ContentType: contentType,
		ExpiresAt:   issued.Add(s.config.UploadURLValidityDuration),
	}, nil
}

// PresignImageDownload returns a presigned GET for a stored proof image.
func (s *UploadService) PresignImageDownload(ctx context.Context, key string) (string, error) {
	if err := requireText("image key", key); err != nil {
		return "", err
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.UploadURLValidityDuration))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
