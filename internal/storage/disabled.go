// AngelaMos | 2026
// disabled.go

package storage

import (
	"context"
	"errors"
	"os"

	"github.com/samber/oops"
)

var ErrDisabled = errors.New("object storage is not configured")

type disabledUploader struct{}

// Disabled is used when no bucket is configured. It still removes the
// local file.
func Disabled() Uploader {
	return disabledUploader{}
}

func (disabledUploader) Upload(_ context.Context, localPath, folder string) (string, error) {
	//nolint:errcheck // temp file cleanup is best effort
	_ = os.Remove(localPath)
	return "", oops.Code("STORAGE_DISABLED").With("folder", folder).Wrap(ErrDisabled)
}
