// Package objstore abstracts the blob store that backs file-attachment
// messages. Callers hand it a stream and get back an opaque URL to persist
// alongside the message.
package objstore

import (
	"context"
	"io"
)

// Store writes uploaded blobs and resolves them to URLs.
type Store interface {
	// Put stores the object under key and returns the URL clients should
	// use to fetch it.
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error)
}
