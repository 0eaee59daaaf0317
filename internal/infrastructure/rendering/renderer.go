package rendering

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dilly/tablebot/internal/domain/table"
)

const (
	// DefaultOutputDir is the artifact directory, relative to the working directory
	DefaultOutputDir = "output"
	// DefaultFileName is the legacy fixed artifact name (output/output.png)
	DefaultFileName = "output"
	// DefaultLaunchTimeout bounds browser start-up
	DefaultLaunchTimeout = 30 * time.Second
	// DefaultLoadTimeout bounds navigation until network quiescence
	DefaultLoadTimeout = 30 * time.Second
	// DefaultCaptureTimeout bounds screenshot or PDF capture
	DefaultCaptureTimeout = 30 * time.Second

	// OutcomeSuccess is reported to the Recorder for successful renders
	OutcomeSuccess = "success"

	stagePrefix = "table-"
)

// Recorder receives one observation per render call
type Recorder interface {
	RecordRender(ctx context.Context, target table.RenderTarget, outcome string, duration time.Duration)
}

// Config contains configuration for the table renderer
type Config struct {
	// OutputDir receives the artifacts (default: output)
	OutputDir string
	// StagingDir receives the transient HTML files (default: os.TempDir())
	StagingDir string
	// DefaultFileName is used when a call does not name its artifact (default: output)
	DefaultFileName string
	// UniqueArtifactNames names unnamed artifacts after the call ID instead of DefaultFileName
	UniqueArtifactNames bool
	// LaunchTimeout, LoadTimeout and CaptureTimeout bound each pipeline stage
	LaunchTimeout  time.Duration
	LoadTimeout    time.Duration
	CaptureTimeout time.Duration
	// Markup controls the generated HTML
	Markup MarkupOptions
	// PageFormat is used for document captures (default: A4)
	PageFormat PageFormat
	// Logger for pipeline stages
	Logger *zap.Logger
	// Recorder is notified of every call (optional)
	Recorder Recorder
}

// RenderOptions contains per-call parameters
type RenderOptions struct {
	// Target selects PNG or PDF output (default: raster)
	Target table.RenderTarget
	// FileName is the artifact base name without extension (optional)
	FileName string
}

// Artifact describes a rendered file
type Artifact struct {
	// ID identifies the render call; it also names the staged markup
	ID string
	// Path of the artifact, relative to the working directory unless OutputDir is absolute
	Path string
	// Target that produced the artifact
	Target table.RenderTarget
	// Size is the file size in bytes
	Size int64
	// Duration is how long the whole pipeline took
	Duration time.Duration
}

// TableRenderer turns TableData into PNG or PDF files through an Engine
type TableRenderer struct {
	engine   Engine
	config   *Config
	logger   *zap.Logger
	recorder Recorder
}

// NewTableRenderer creates a renderer using the given engine
func NewTableRenderer(engine Engine, config *Config) (*TableRenderer, error) {
	if engine == nil {
		return nil, errors.New("rendering engine is required")
	}
	if config == nil {
		config = &Config{}
	}

	// Set defaults
	if config.OutputDir == "" {
		config.OutputDir = DefaultOutputDir
	}
	if config.StagingDir == "" {
		config.StagingDir = os.TempDir()
	}
	if config.DefaultFileName == "" {
		config.DefaultFileName = DefaultFileName
	}
	if config.LaunchTimeout == 0 {
		config.LaunchTimeout = DefaultLaunchTimeout
	}
	if config.LoadTimeout == 0 {
		config.LoadTimeout = DefaultLoadTimeout
	}
	if config.CaptureTimeout == 0 {
		config.CaptureTimeout = DefaultCaptureTimeout
	}
	if config.PageFormat.WidthMM == 0 || config.PageFormat.HeightMM == 0 {
		config.PageFormat = PageFormatA4
	}
	if err := validateFileName(config.DefaultFileName); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TableRenderer{
		engine:   engine,
		config:   config,
		logger:   logger,
		recorder: config.Recorder,
	}, nil
}

// OutputDir returns the directory artifacts are written to
func (r *TableRenderer) OutputDir() string {
	return r.config.OutputDir
}

// Render renders data to the target and returns the artifact path
func (r *TableRenderer) Render(ctx context.Context, data table.TableData, target table.RenderTarget) (string, error) {
	artifact, err := r.RenderWithOptions(ctx, data, RenderOptions{Target: target})
	if err != nil {
		return "", err
	}
	return artifact.Path, nil
}

// RenderWithOptions runs the full pipeline: normalize, build markup, launch
// the engine, stage and load the markup, ensure the output directory,
// capture and write the artifact. The staged file and the engine session
// are released on every exit path.
func (r *TableRenderer) RenderWithOptions(ctx context.Context, data table.TableData, opts RenderOptions) (artifact *Artifact, err error) {
	start := time.Now()
	target := opts.Target.OrDefault()
	id := uuid.New().String()

	log := r.logger.With(zap.String("render_id", id), zap.String("target", target.String()))

	defer func() {
		outcome := OutcomeSuccess
		if err != nil {
			outcome = CodeOf(err)
			if outcome == "" {
				outcome = "UNKNOWN"
			}
		}
		if r.recorder != nil {
			r.recorder.RecordRender(ctx, target, outcome, time.Since(start))
		}
	}()

	if !target.IsValid() {
		return nil, NewRenderError(ErrCodeInvalidTarget,
			fmt.Sprintf("unsupported render target: %q", opts.Target), nil)
	}

	name := opts.FileName
	if name == "" {
		name = r.config.DefaultFileName
		if r.config.UniqueArtifactNames {
			name = id
		}
	}
	if err := validateFileName(name); err != nil {
		return nil, err
	}
	outputPath := filepath.Join(r.config.OutputDir, name+"."+target.Extension())

	columns, rows := data.Shape()
	log.Debug("normalizing table data", zap.Int("columns", columns), zap.Int("rows", rows))
	items := table.Normalize(data)

	markup := BuildMarkup(data, items, r.config.Markup)
	log.Debug("markup generated", zap.Int("bytes", len(markup)))

	session, err := r.launch(ctx)
	if err != nil {
		log.Error("failed to launch rendering engine", zap.Error(err))
		return nil, NewRenderError(ErrCodeEngineLaunch, "failed to launch rendering engine", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			log.Warn("failed to close rendering session", zap.Error(closeErr))
		}
	}()

	stagedPath := filepath.Join(r.config.StagingDir, stagePrefix+id+".html")
	if err := os.WriteFile(stagedPath, []byte(markup), 0600); err != nil {
		log.Error("failed to stage markup", zap.String("path", stagedPath), zap.Error(err))
		return nil, NewRenderError(ErrCodePageLoad, "failed to stage markup", err)
	}
	defer func() {
		if rmErr := os.Remove(stagedPath); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warn("failed to remove staged markup", zap.String("path", stagedPath), zap.Error(rmErr))
		}
	}()

	pageURL, err := fileURL(stagedPath)
	if err != nil {
		return nil, NewRenderError(ErrCodePageLoad, "failed to resolve staged markup path", err)
	}

	loadCtx, cancelLoad := context.WithTimeout(ctx, r.config.LoadTimeout)
	err = session.Load(loadCtx, pageURL)
	cancelLoad()
	if err != nil {
		log.Error("failed to load markup", zap.String("url", pageURL), zap.Error(err))
		return nil, NewRenderError(ErrCodePageLoad, "failed to load markup", err)
	}
	log.Debug("markup loaded", zap.String("url", pageURL))

	if err := ensureDir(r.config.OutputDir); err != nil {
		log.Error("failed to prepare output directory", zap.String("dir", r.config.OutputDir), zap.Error(err))
		return nil, NewRenderError(ErrCodeOutputDirectory,
			fmt.Sprintf("failed to prepare output directory: %s", r.config.OutputDir), err)
	}

	size, err := r.capture(ctx, session, target, outputPath)
	if err != nil {
		log.Error("failed to capture artifact", zap.String("path", outputPath), zap.Error(err))
		return nil, NewRenderError(ErrCodeCapture, "failed to capture artifact", err)
	}

	duration := time.Since(start)
	log.Info("table rendered",
		zap.String("path", outputPath),
		zap.Int64("size", size),
		zap.Duration("duration", duration))

	return &Artifact{
		ID:       id,
		Path:     outputPath,
		Target:   target,
		Size:     size,
		Duration: duration,
	}, nil
}

// launch starts a session bounded by LaunchTimeout
func (r *TableRenderer) launch(ctx context.Context) (Session, error) {
	launchCtx, cancel := context.WithTimeout(ctx, r.config.LaunchTimeout)
	defer cancel()
	return r.engine.Launch(launchCtx)
}

// capture takes the screenshot or PDF and writes it to path.
// On failure no file is left at path.
func (r *TableRenderer) capture(ctx context.Context, session Session, target table.RenderTarget, path string) (int64, error) {
	captureCtx, cancel := context.WithTimeout(ctx, r.config.CaptureTimeout)
	defer cancel()

	var data []byte
	var err error
	switch target {
	case table.RenderTargetDocument:
		data, err = session.CaptureDocument(captureCtx, r.config.PageFormat)
	default:
		data, err = session.CaptureRaster(captureCtx)
	}
	if err == nil && len(data) == 0 {
		err = errors.New("engine returned no data")
	}
	if err == nil {
		err = writeArtifact(path, data)
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			r.logger.Warn("failed to remove partial artifact", zap.String("path", path), zap.Error(rmErr))
		}
		return 0, err
	}
	return int64(len(data)), nil
}

// writeArtifact writes data next to path and renames it into place
func writeArtifact(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

// ensureDir creates dir if needed; an existing directory is success
func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s exists and is not a directory", dir)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// fileURL converts a local path into an absolute file:// URL
func fileURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}

// validateFileName accepts plain base names only
func validateFileName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return NewRenderError(ErrCodeInvalidFileName, fmt.Sprintf("invalid artifact name: %q", name), nil)
	}
	return nil
}
