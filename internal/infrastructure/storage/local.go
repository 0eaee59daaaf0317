package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LocalPublisherConfig contains configuration for the local publisher
type LocalPublisherConfig struct {
	// OutputDir is the directory served under RoutePrefix
	OutputDir string
	// PublicBaseURL is the externally reachable base of this server
	// Example: https://bot.example.com
	PublicBaseURL string
	// RoutePrefix is the static route serving OutputDir (default: /output)
	RoutePrefix string
	// Logger for operations
	Logger *zap.Logger
}

// LocalPublisher publishes artifacts that the HTTP server serves statically
type LocalPublisher struct {
	config *LocalPublisherConfig
	logger *zap.Logger
}

// NewLocalPublisher creates a publisher for artifacts under OutputDir
func NewLocalPublisher(config *LocalPublisherConfig) (*LocalPublisher, error) {
	if config == nil {
		return nil, errors.New("local publisher configuration is required")
	}
	if config.PublicBaseURL == "" {
		return nil, errors.New("public base URL is required")
	}
	if _, err := url.Parse(config.PublicBaseURL); err != nil {
		return nil, fmt.Errorf("invalid public base URL: %w", err)
	}
	if config.OutputDir == "" {
		config.OutputDir = "output"
	}
	if config.RoutePrefix == "" {
		config.RoutePrefix = "/output"
	}
	config.PublicBaseURL = strings.TrimRight(config.PublicBaseURL, "/")

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &LocalPublisher{
		config: config,
		logger: logger,
	}, nil
}

// Publish returns the public URL of an artifact stored under OutputDir
func (p *LocalPublisher) Publish(ctx context.Context, artifactPath string) (*Published, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rel, err := p.relativePath(artifactPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidArtifact, artifactPath)
	}

	published := &Published{
		URL:  p.URL(rel),
		Key:  rel,
		Size: info.Size(),
	}

	p.logger.Info("artifact published",
		zap.String("path", artifactPath),
		zap.String("url", published.URL),
		zap.Int64("size", published.Size))

	return published, nil
}

// URL returns the public URL for a path relative to OutputDir
func (p *LocalPublisher) URL(rel string) string {
	segments := strings.Split(filepath.ToSlash(rel), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return p.config.PublicBaseURL + p.config.RoutePrefix + "/" + strings.Join(segments, "/")
}

// relativePath verifies the artifact lives under OutputDir
func (p *LocalPublisher) relativePath(artifactPath string) (string, error) {
	absBase, err := filepath.Abs(p.config.OutputDir)
	if err != nil {
		return "", fmt.Errorf("resolve output dir: %w", err)
	}
	absPath, err := filepath.Abs(artifactPath)
	if err != nil {
		return "", fmt.Errorf("resolve artifact path: %w", err)
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		p.logger.Warn("artifact outside output directory blocked",
			zap.String("path", artifactPath),
			zap.String("absBase", absBase))
		return "", fmt.Errorf("%w: %s is outside %s", ErrInvalidArtifact, artifactPath, p.config.OutputDir)
	}
	return rel, nil
}

// Ensure LocalPublisher implements Publisher
var _ Publisher = (*LocalPublisher)(nil)
