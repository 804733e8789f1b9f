// Package storage keeps uploaded files in a local directory or a GCS bucket.
// Objects are written once: a second write under the same name fails with
// ErrExists instead of replacing the first file.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

var (
	ErrExists      = errors.New("object already exists")
	ErrNotExist    = errors.New("object does not exist")
	ErrInvalidName = errors.New("invalid object name")
)

// Store is the object store used by the upload relay and the slip loader
type Store interface {
	Create(ctx context.Context, name string, r io.Reader, contentType string) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Exists(ctx context.Context, name string) (bool, error)
}

// PublicPrefix is the URL path under which stored objects are served
const PublicPrefix = "/uploads/"

// URLFor builds the public URL of an object from the configured base URL
func URLFor(baseURL, name string) string {
	return strings.TrimRight(baseURL, "/") + PublicPrefix + name
}

// PathFor is the relative path reported to clients
func PathFor(name string) string {
	return strings.TrimPrefix(PublicPrefix, "/") + name
}

// NameFromURL maps a public URL back to an object name. It returns false
// for URLs that do not point into this store.
func NameFromURL(baseURL, url string) (string, bool) {
	prefix := strings.TrimRight(baseURL, "/") + PublicPrefix
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(url, prefix)
	if validName(name) != nil {
		return "", false
	}
	return name, true
}

// Objects live flat under the store root
func validName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return ErrInvalidName
	}
	return nil
}
