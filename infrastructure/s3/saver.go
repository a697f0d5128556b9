package s3

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/Skryldev/voiceclip/domain/model"
	"github.com/Skryldev/voiceclip/pkg/logger"
	"github.com/Skryldev/voiceclip/pkg/retry"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// Config holds S3-compatible bucket settings.
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// Prefix is prepended to every object key.
	Prefix string
	// PublicURL, when set, is the base of the returned remote URLs instead
	// of the endpoint.
	PublicURL string
}

// IsConfigured reports whether enough is set to talk to a bucket.
func (c Config) IsConfigured() bool {
	return c.Bucket != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// ObjectAPI is the subset of the S3 client the saver calls.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Saver uploads applied clips to a bucket. It implements ports.Saver.
type Saver struct {
	client ObjectAPI
	cfg    Config
	retry  retry.Config
	log    *logger.Logger
}

// NewClient builds an S3 client with static credentials. A custom endpoint
// switches to path-style addressing for S3-compatible stores.
func NewClient(cfg Config) *s3.Client {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	options := []func(*s3.Options){
		func(o *s3.Options) {
			o.Credentials = creds
			o.Region = region
		},
	}
	if cfg.Endpoint != "" {
		options = append(options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.New(s3.Options{}, options...)
}

// NewSaver wires a saver to client. Pass NewClient(cfg) in production.
func NewSaver(client ObjectAPI, cfg Config, retryCfg retry.Config, log *logger.Logger) *Saver {
	return &Saver{
		client: client,
		cfg:    cfg,
		retry:  retryCfg,
		log:    logger.OrNop(log).Named("s3"),
	}
}

// Key returns the object key for item.
func (s *Saver) Key(item model.AudioItem) string {
	return path.Join(s.cfg.Prefix, path.Base(item.Path))
}

func (s *Saver) Save(ctx context.Context, item model.AudioItem, localPath string) (string, error) {
	key := s.Key(item)
	err := retry.Do(ctx, s.retry, func() error {
		f, err := os.Open(localPath)
		if err != nil {
			return retry.Permanent(fmt.Errorf("open clip for upload: %w", err))
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return retry.Permanent(fmt.Errorf("stat clip for upload: %w", err))
		}

		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.cfg.Bucket),
			Key:           aws.String(key),
			Body:          f,
			ContentLength: aws.Int64(info.Size()),
			ContentType:   aws.String(contentType(localPath)),
			Metadata: map[string]string{
				"clip-id": item.ID,
				"title":   item.Title,
			},
		})
		return err
	})
	if err != nil {
		s.log.Error("upload failed",
			zap.String("clip_id", item.ID),
			zap.String("s3_key", key),
			zap.Error(err),
		)
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	s.log.Info("clip uploaded", zap.String("clip_id", item.ID), zap.String("s3_key", key))
	return s.objectURL(key), nil
}

func (s *Saver) Delete(ctx context.Context, item model.AudioItem) error {
	key := s.Key(item)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *Saver) objectURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if s.cfg.PublicURL != "" {
		return strings.TrimRight(s.cfg.PublicURL, "/") + "/" + escaped
	}
	if s.cfg.Endpoint != "" {
		return strings.TrimRight(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket + "/" + escaped
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.cfg.Bucket, escaped)
}

func contentType(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".mp3":
		return "audio/mpeg"
	}
	return "application/octet-stream"
}
