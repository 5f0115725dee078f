// Package blob resolves stored artifact keys into download locations.
package blob

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var ErrEmptyKey = errors.New("blob key is empty")

// Location is an opaque, possibly expiring, URL to an artifact.
type Location struct {
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type Locator interface {
	Locate(ctx context.Context, key string) (*Location, error)
}

type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Locator hands out presigned GET urls.
type S3Locator struct {
	presigner PresignAPI
	bucket    string
	ttl       time.Duration
	now       func() time.Time
}

// NewS3Locator builds a presigning locator. A non-empty endpoint switches to
// path-style addressing for S3-compatible stores such as MinIO.
func NewS3Locator(cfg aws.Config, bucket, endpoint string, ttl time.Duration) *S3Locator {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3LocatorWithPresigner(s3.NewPresignClient(client), bucket, ttl)
}

func NewS3LocatorWithPresigner(presigner PresignAPI, bucket string, ttl time.Duration) *S3Locator {
	return &S3Locator{
		presigner: presigner,
		bucket:    bucket,
		ttl:       ttl,
		now:       time.Now,
	}
}

func (l *S3Locator) Locate(ctx context.Context, key string) (*Location, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return nil, ErrEmptyKey
	}

	req, err := l.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(l.ttl))
	if err != nil {
		return nil, err
	}

	expires := l.now().Add(l.ttl).UTC()
	return &Location{URL: req.URL, ExpiresAt: &expires}, nil
}

// StaticLocator joins keys onto a public base url. Its locations never expire.
type StaticLocator struct {
	BaseURL string
}

func (l StaticLocator) Locate(ctx context.Context, key string) (*Location, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return nil, ErrEmptyKey
	}
	u, err := url.JoinPath(l.BaseURL, strings.Split(key, "/")...)
	if err != nil {
		return nil, err
	}
	return &Location{URL: u}, nil
}
