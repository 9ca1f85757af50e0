// AngelaMos | 2026
// s3.go

package storage

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/carterperez-dev/templates/account-service/internal/config"
)

// Uploader stores a local file under folder and returns its public URL.
// The local file is removed whether or not the upload succeeds.
type Uploader interface {
	Upload(ctx context.Context, localPath, folder string) (string, error)
}

type putObjectAPI interface {
	PutObject(
		ctx context.Context,
		in *s3.PutObjectInput,
		optFns ...func(*s3.Options),
	) (*s3.PutObjectOutput, error)
}

var (
	loadDefaultAWSConfig  = awsconfig.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type S3Uploader struct {
	client        putObjectAPI
	bucket        string
	publicBaseURL string
}

func NewS3Uploader(ctx context.Context, cfg config.StorageConfig) (*S3Uploader, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, oops.Code("STORAGE_CONFIG_FAILED").With("region", cfg.Region).Wrap(err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Uploader{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, localPath, folder string) (string, error) {
	//nolint:errcheck // temp file cleanup is best effort
	defer os.Remove(localPath)

	f, err := os.Open(localPath) //nolint:gosec // path comes from os.CreateTemp
	if err != nil {
		return "", oops.Code("STORAGE_OPEN_FAILED").With("path", localPath).Wrap(err)
	}
	defer f.Close() //nolint:errcheck

	contentType, err := sniffContentType(f)
	if err != nil {
		return "", oops.Code("STORAGE_OPEN_FAILED").With("path", localPath).Wrap(err)
	}

	key := path.Join(folder, uuid.New().String()+strings.ToLower(filepath.Ext(localPath)))

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", oops.Code("STORAGE_UPLOAD_FAILED").
			With("bucket", u.bucket).
			With("key", key).
			Wrap(err)
	}

	return u.publicBaseURL + "/" + key, nil
}

func sniffContentType(f *os.File) (string, error) {
	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}
