package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/config"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/models"
)

// Archiver keeps a copy of every package that was actually delivered, as
// audit evidence of what the portal received. Best-effort: an archive
// failure never affects the submission outcome.
type Archiver interface {
	StorePackage(ctx context.Context, pkg models.Package) (string, error)
}

// snapshot is the serialized archive record.
type snapshot struct {
	SubmissionID   string                 `json:"submission_id"`
	Format         string                 `json:"format"`
	PrimarySHA     string                 `json:"-"`
	Primary        []byte                 `json:"primary_document"`
	Forms          map[string][]byte      `json:"forms"`
	Certifications []models.Certification `json:"certifications"`
	ArchivedAt     time.Time              `json:"archived_at"`
}

func encodeSnapshot(pkg models.Package) ([]byte, error) {
	return json.Marshal(snapshot{
		SubmissionID:   pkg.SubmissionID,
		Format:         pkg.Primary.Format,
		Primary:        pkg.Primary.Content,
		Forms:          pkg.Forms,
		Certifications: pkg.Certifications,
		ArchivedAt:     time.Now().UTC(),
	})
}

func archiveKey(pkg models.Package) string {
	return fmt.Sprintf("%s/%s.json", time.Now().UTC().Format("2006/01/02"), sanitizeKey(pkg.SubmissionID))
}

func sanitizeKey(key string) string {
	key = strings.TrimLeft(key, "/")
	return strings.ReplaceAll(key, "..", "")
}

// Local writes archives under a base directory.
type Local struct {
	baseDir string
}

func NewLocal(baseDir string) *Local {
	if baseDir == "" {
		baseDir = "./archive"
	}
	return &Local{baseDir: baseDir}
}

func (l *Local) StorePackage(_ context.Context, pkg models.Package) (string, error) {
	body, err := encodeSnapshot(pkg)
	if err != nil {
		return "", fmt.Errorf("encode archive: %w", err)
	}
	path := filepath.Join(l.baseDir, filepath.FromSlash(archiveKey(pkg)))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}
	return path, nil
}

// S3 stores archives in an S3 bucket.
type S3 struct {
	client *s3.Client
	bucket string
}

func NewS3(ctx context.Context, cfg config.Config) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.ArchiveS3Region),
	}
	if cfg.ArchiveS3Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:               cfg.ArchiveS3Endpoint,
					HostnameImmutable: cfg.ArchiveS3PathStyle,
					SigningRegion:     cfg.ArchiveS3Region,
					Source:            aws.EndpointSourceCustom,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ArchiveS3PathStyle
	})
	return &S3{client: client, bucket: cfg.ArchiveS3Bucket}, nil
}

func (a *S3) StorePackage(ctx context.Context, pkg models.Package) (string, error) {
	body, err := encodeSnapshot(pkg)
	if err != nil {
		return "", fmt.Errorf("encode archive: %w", err)
	}
	key := archiveKey(pkg)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put archive object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}

// FromConfig picks S3 when a bucket is configured, the local directory otherwise.
func FromConfig(ctx context.Context, cfg config.Config) (Archiver, error) {
	if cfg.ArchiveS3Bucket != "" {
		return NewS3(ctx, cfg)
	}
	return NewLocal(cfg.ArchiveDir), nil
}
