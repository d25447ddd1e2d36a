// Package storage archives deployment artifacts, the redacted request logs
// and generated project snapshots, to local disk or S3.
package storage

import (
	"context"
	"io"
)

type ArchiveStore interface {
	PutObject(ctx context.Context, key string, data io.Reader) error

	UploadDir(ctx context.Context, prefix, src string) error

	DeleteObjects(ctx context.Context, prefix string) error
}
