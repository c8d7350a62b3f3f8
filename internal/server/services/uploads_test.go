package services

import (
	"context"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spacetask/spacetask/internal/common"
	sc "github.com/spacetask/spacetask/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUploadServiceForTest() *UploadService {
	return NewUploadService(&sc.Config{
		S3Region:                  "us-east-1",
		S3RootUser:                "minioadmin",
		S3RootPassword:            "minioadmin",
		S3BaseEndpoint:            "http://127.0.0.1:9000",
		S3Bucket:                  "proofs",
		UploadURLValidityDuration: 15 * time.Minute,
	})
}

// stubS3 swaps the AWS constructors for fakes and restores them afterwards.
func stubS3(t *testing.T) {
	t.Helper()
	origLoad, origNewS3, origNewPre := loadDefaultAWSConfig, newS3ClientFromConfig, newS3PresignClient
	origPut, origGet, origNow := presignPutObject, presignGetObject, now
	t.Cleanup(func() {
		loadDefaultAWSConfig, newS3ClientFromConfig, newS3PresignClient = origLoad, origNewS3, origNewPre
		presignPutObject, presignGetObject, now = origPut, origGet, origNow
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				t.Fatalf("load options fn error: %v", err)
			}
		}
		if lo.Region != "us-east-1" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		if opts.BaseEndpoint == nil || *opts.BaseEndpoint != "http://127.0.0.1:9000" {
			t.Fatalf("BaseEndpoint not applied")
		}
		if !opts.UsePathStyle {
			t.Fatalf("path style not enabled")
		}
		return &s3.Client{}
	}
	newS3PresignClient = func(*s3.Client) *s3.PresignClient { return &s3.PresignClient{} }
	now = func() time.Time { return time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC) }
}

func TestPresignImageUpload(t *testing.T) {
	stubS3(t)

	var gotKey, gotType string
	presignPutObject = func(_ *s3.PresignClient, _ context.Context, in *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		assert.Equal(t, "proofs", *in.Bucket)
		gotKey, gotType = *in.Key, *in.ContentType
		return &v4.PresignedHTTPRequest{URL: "http://put/" + *in.Key, Method: http.MethodPut}, nil
	}

	up, err := newUploadServiceForTest().PresignImageUpload(context.Background(), "u1", "Sunset.JPG")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^proofs/u1/2025/03/07/[0-9a-f-]{36}\.jpg$`), up.Key)
	assert.Equal(t, gotKey, up.Key)
	assert.Equal(t, "image/jpeg", gotType)
	assert.Equal(t, "image/jpeg", up.ContentType)
	assert.Equal(t, "http://put/"+up.Key, up.URL)
	assert.Equal(t, time.Date(2025, 3, 7, 12, 15, 0, 0, time.UTC), up.ExpiresAt)
}

func TestPresignImageUpload_RejectsExtension(t *testing.T) {
	for _, name := range []string{"doc.pdf", "noext", "archive.png.zip"} {
		_, err := newUploadServiceForTest().PresignImageUpload(context.Background(), "u1", name)
		assert.ErrorIs(t, err, common.ErrValidation, name)
	}
}

func TestPresignImageUpload_Errors(t *testing.T) {
	t.Run("config load fails", func(t *testing.T) {
		stubS3(t)
		loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
			return aws.Config{}, errBoom{}
		}
		_, err := newUploadServiceForTest().PresignImageUpload(context.Background(), "u1", "a.png")
		assert.ErrorIs(t, err, errBoom{})
	})

	t.Run("presign fails", func(t *testing.T) {
		stubS3(t)
		presignPutObject = func(*s3.PresignClient, context.Context, *s3.PutObjectInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
			return nil, errBoom{}
		}
		_, err := newUploadServiceForTest().PresignImageUpload(context.Background(), "u1", "a.webp")
		assert.ErrorIs(t, err, errBoom{})
	})
}

func TestPresignImageDownload(t *testing.T) {
	stubS3(t)
	presignGetObject = func(_ *s3.PresignClient, _ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return &v4.PresignedHTTPRequest{URL: "http://get/" + *in.Key}, nil
	}

	url, err := newUploadServiceForTest().PresignImageDownload(context.Background(), "proofs/u1/x.png")
	require.NoError(t, err)
	assert.Equal(t, "http://get/proofs/u1/x.png", url)

	_, err = newUploadServiceForTest().PresignImageDownload(context.Background(), "")
	assert.ErrorIs(t, err, common.ErrValidation)
}
