// Package upload stores finished drawings in object storage and hands
// back a public URL.
package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/sketchparty/sketchparty/internal/config"
)

// dataURLPrefix matches the prefix browsers prepend to canvas exports.
var dataURLPrefix = regexp.MustCompile(`^data:image/\w+;base64,`)

// objectPutter is the slice of the S3 client the uploader needs.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader uploads base64 image payloads to a public bucket.
type S3Uploader struct {
	client    objectPutter
	bucket    string
	keyPrefix string
	region    string
	endpoint  string
}

// NewS3Uploader builds an uploader from config. Static credentials are
// used when provided, otherwise the default AWS credential chain.
func NewS3Uploader(ctx context.Context, cfg config.S3Config) (*S3Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Uploader{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		region:    cfg.Region,
		endpoint:  cfg.Endpoint,
	}, nil
}

// Upload decodes an image payload, writes it to the bucket under the
// configured prefix and returns the object's public URL. imageData may
// be a data URL or bare base64.
func (u *S3Uploader) Upload(ctx context.Context, imageData, fileName string) (string, error) {
	base64Data := dataURLPrefix.ReplaceAllString(imageData, "")

	body, err := base64.StdEncoding.DecodeString(base64Data)
	if err != nil {
		return "", fmt.Errorf("decoding image data: %w", err)
	}

	key := fileName
	if u.keyPrefix != "" {
		key = u.keyPrefix + "/" + fileName
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("image/png"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading to s3: %w", err)
	}

	url := u.publicURL(key)
	log.Info().Str("key", key).Str("url", url).Msg("uploaded drawing to S3")
	return url, nil
}

// publicURL builds the object URL. A custom endpoint (MinIO and
// friends) uses path style, AWS proper uses virtual-hosted style.
func (u *S3Uploader) publicURL(key string) string {
	if u.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(u.endpoint, "/"), u.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, key)
}
