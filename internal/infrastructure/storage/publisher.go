// Package storage publishes rendered artifacts at URLs the chat platform can fetch.
package storage

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/dilly/tablebot/internal/domain/table"
)

// Storage drivers selected by storage.driver
const (
	DriverLocal = "local"
	DriverS3    = "s3"
)

// ErrInvalidArtifact is returned for artifacts a publisher refuses to serve
var ErrInvalidArtifact = errors.New("invalid artifact")

// Publisher makes a local artifact reachable by URL
type Publisher interface {
	Publish(ctx context.Context, artifactPath string) (*Published, error)
}

// Published describes a published artifact
type Published struct {
	// URL is the public (or presigned) address of the artifact
	URL string
	// Key identifies the artifact inside the publisher
	Key string
	// Size is the artifact size in bytes
	Size int64
}

// contentTypeFor returns the MIME type derived from the artifact extension
func contentTypeFor(path string) string {
	switch filepath.Ext(path) {
	case "." + table.RenderTargetDocument.Extension():
		return table.RenderTargetDocument.ContentType()
	case "." + table.RenderTargetRaster.Extension():
		return table.RenderTargetRaster.ContentType()
	default:
		return "application/octet-stream"
	}
}
