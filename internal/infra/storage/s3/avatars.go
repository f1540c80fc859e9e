package s3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/CypherNinjaa/social-media-sub000/internal/domain/profile"
)

// Presigner hands out time-limited GET URLs for stored objects.
type Presigner interface {
	PresignGet(ctx context.Context, key string) (string, error)
}

// Client wraps a MinIO/S3 client bound to the avatar bucket.
type Client struct {
	bucket         string
	ttl            time.Duration
	client         *minio.Client
	logger         *slog.Logger
	bucketInitOnce sync.Once
	bucketInitErr  error
}

type Options struct {
	Endpoint  string
	UseSSL    bool
	AccessKey string
	SecretKey string
	Bucket    string
	URLTTL    time.Duration
}

// NewClient configures a presigner. Endpoint may be a bare host:port or a URL.
func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	minioClient, err := minio.New(parseEndpoint(endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(opts.AccessKey), strings.TrimSpace(opts.SecretKey), ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	ttl := opts.URLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Client{bucket: bucket, ttl: ttl, client: minioClient, logger: logger}, nil
}

func (c *Client) PresignGet(ctx context.Context, key string) (string, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("s3: object key is required")
	}
	if err := c.ensureBucket(ctx); err != nil {
		return "", err
	}
	u, err := c.client.PresignedGetObject(ctx, c.bucket, key, c.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("s3: presign %s: %w", key, err)
	}
	return u.String(), nil
}

// Ping checks that the bucket is reachable; used by readiness.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.client.BucketExists(ctx, c.bucket)
	return err
}

func (c *Client) ensureBucket(ctx context.Context) error {
	c.bucketInitOnce.Do(func() {
		exists, err := c.client.BucketExists(ctx, c.bucket)
		if err != nil {
			c.bucketInitErr = fmt.Errorf("s3: check bucket: %w", err)
			return
		}
		if !exists {
			c.bucketInitErr = fmt.Errorf("s3: bucket %q does not exist", c.bucket)
		}
	})
	return c.bucketInitErr
}

func parseEndpoint(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

// AvatarDirectory decorates a profile directory: profiles that reference an
// avatar object key get a presigned URL in place of the stored one.
type AvatarDirectory struct {
	Next      profile.Directory
	Presigner Presigner
	Logger    *slog.Logger
}

func (d AvatarDirectory) Lookup(ctx context.Context, userIDs []string) (map[string]profile.Profile, error) {
	found, err := d.Next.Lookup(ctx, userIDs)
	if err != nil || d.Presigner == nil {
		return found, err
	}
	for id, p := range found {
		if p.AvatarKey == "" {
			continue
		}
		signed, err := d.Presigner.PresignGet(ctx, p.AvatarKey)
		if err != nil {
			if d.Logger != nil {
				d.Logger.WarnContext(ctx, "avatar presign failed", "user_id", id, "error", err)
			}
			continue
		}
		p.AvatarURL = signed
		found[id] = p
	}
	return found, nil
}

var (
	_ Presigner         = (*Client)(nil)
	_ profile.Directory = AvatarDirectory{}
)
