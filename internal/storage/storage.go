package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sirupsen/logrus"

	"github.com/onlinebus/booking-backend/internal/config"
)

const pdfContentType = "application/pdf"

// TicketArchive keeps a copy of every issued ticket
type TicketArchive interface {
	// Save stores the document under key and returns where it can be found
	Save(ctx context.Context, key string, data []byte) (string, error)
}

// New returns the archive selected by configuration
func New(cfg config.StorageConfig, logger *logrus.Logger) (TicketArchive, error) {
	switch strings.ToLower(cfg.Provider) {
	case "s3":
		archive, err := NewS3Archive(cfg)
		if err != nil {
			return nil, err
		}
		logger.WithField("bucket", cfg.S3Bucket).Info("Ticket archive: S3")
		return archive, nil
	case "", "local":
		archive, err := NewLocalArchive(cfg.LocalDir)
		if err != nil {
			return nil, err
		}
		logger.WithField("dir", cfg.LocalDir).Info("Ticket archive: local directory")
		return archive, nil
	default:
		return nil, fmt.Errorf("unknown ticket storage provider %q", cfg.Provider)
	}
}

// LocalArchive writes tickets below a directory
type LocalArchive struct {
	dir string
}

// NewLocalArchive creates the directory if needed
func NewLocalArchive(dir string) (*LocalArchive, error) {
	if dir == "" {
		return nil, fmt.Errorf("ticket directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ticket directory: %w", err)
	}
	return &LocalArchive{dir: dir}, nil
}

// Save implements TicketArchive
func (a *LocalArchive) Save(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(a.dir, filepath.FromSlash(cleanKey(key)))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create ticket folder: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write ticket: %w", err)
	}
	return path, nil
}

// S3Archive uploads tickets to a bucket
type S3Archive struct {
	bucket   string
	uploader *s3manager.Uploader
}

// NewS3Archive creates an S3 session from static credentials, or the
// default credential chain when none are configured
func NewS3Archive(cfg config.StorageConfig) (*S3Archive, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name not configured")
	}

	awsCfg := &aws.Config{Region: aws.String(cfg.S3Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Archive{
		bucket:   cfg.S3Bucket,
		uploader: s3manager.NewUploader(sess),
	}, nil
}

// Save implements TicketArchive
func (a *S3Archive) Save(ctx context.Context, key string, data []byte) (string, error) {
	out, err := a.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(cleanKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(pdfContentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload ticket to S3: %w", err)
	}
	return out.Location, nil
}

// cleanKey strips leading slashes and parent references
func cleanKey(key string) string {
	key = filepath.ToSlash(filepath.Clean("/" + key))
	return strings.TrimPrefix(key, "/")
}
