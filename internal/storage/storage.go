package storage

import (
	"context"
	"io"
)

// Uploader stores rendered question audio and returns a URL the client can
// stream from.
type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (publicURL string, err error)
}
