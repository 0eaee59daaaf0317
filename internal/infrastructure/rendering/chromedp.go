package rendering

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	defaultWindowWidth  = 800
	defaultWindowHeight = 600
	defaultScale        = 1.0
	// rasterQuality of 100 makes chromedp capture PNG instead of JPEG
	rasterQuality = 100

	lifecycleInit        = "init"
	lifecycleNetworkIdle = "networkIdle"
)

// ChromedpConfig contains configuration for the chromedp engine
type ChromedpConfig struct {
	// ExecPath is the Chrome/Chromium binary (optional, chromedp searches PATH)
	ExecPath string
	// RemoteURL is the DevTools URL of an already running browser (optional)
	// If set, no local process is launched
	RemoteURL string
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	// EnableGPU turns GPU hardware acceleration back on; servers rarely have one
	EnableGPU bool
	// WindowWidth and WindowHeight set the viewport used for screenshots
	WindowWidth  int
	WindowHeight int
	// Scale for PDF rendering (default: 1.0)
	Scale float64
	// Logger for debug output
	Logger *zap.Logger
}

// ChromedpEngine launches headless Chrome sessions through the DevTools Protocol
type ChromedpEngine struct {
	config *ChromedpConfig
	logger *zap.Logger
}

// NewChromedpEngine creates a new chromedp-based rendering engine
func NewChromedpEngine(config *ChromedpConfig) *ChromedpEngine {
	if config == nil {
		config = &ChromedpConfig{}
	}

	if config.WindowWidth == 0 {
		config.WindowWidth = defaultWindowWidth
	}
	if config.WindowHeight == 0 {
		config.WindowHeight = defaultWindowHeight
	}
	if config.Scale == 0 {
		config.Scale = defaultScale
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ChromedpEngine{
		config: config,
		logger: logger,
	}
}

// allocatorOptions builds the exec allocator flags for a headless, sandbox-free browser
func (e *ChromedpEngine) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", !e.config.EnableGPU),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true), // Important for Docker
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("font-render-hinting", "none"),
		chromedp.WindowSize(e.config.WindowWidth, e.config.WindowHeight),
	)

	if e.config.NoSandbox {
		opts = append(opts,
			chromedp.NoSandbox,
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}
	if e.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(e.config.ExecPath))
	}

	return opts
}

// Launch starts a browser and opens one tab. The first Run on a fresh
// context is what actually spawns the process.
func (e *ChromedpEngine) Launch(ctx context.Context) (Session, error) {
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if e.config.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), e.config.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), e.allocatorOptions()...)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			e.logger.Debug(fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			e.logger.Warn(fmt.Sprintf(format, args...))
		}),
	)

	started := make(chan error, 1)
	go func() {
		started <- chromedp.Run(tabCtx)
	}()

	select {
	case err := <-started:
		if err != nil {
			tabCancel()
			allocCancel()
			return nil, err
		}
	case <-ctx.Done():
		tabCancel()
		allocCancel()
		return nil, ctx.Err()
	}

	e.logger.Debug("chrome session started", zap.Bool("remote", e.config.RemoteURL != ""))

	return &chromedpSession{
		ctx:         tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		scale:       e.config.Scale,
		logger:      e.logger,
	}, nil
}

// chromedpSession is a single tab in a browser owned by the session
type chromedpSession struct {
	ctx         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	scale       float64
	logger      *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// bounded derives a context from the tab that is also cancelled with ctx
func (s *chromedpSession) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(s.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// stageErr prefers the caller's context error so deadlines stay visible to errors.Is
func stageErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}

// Load navigates to url and blocks until the page reports networkIdle
func (s *chromedpSession) Load(ctx context.Context, url string) error {
	runCtx, cancel := s.bounded(ctx)
	defer cancel()

	if err := chromedp.Run(runCtx, page.SetLifecycleEventsEnabled(true)); err != nil {
		return stageErr(ctx, err)
	}

	idle := make(chan struct{})
	var idleOnce sync.Once
	var navigated atomic.Bool
	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		e, ok := ev.(*page.EventLifecycleEvent)
		if !ok {
			return
		}
		switch e.Name {
		case lifecycleInit:
			navigated.Store(true)
		case lifecycleNetworkIdle:
			if navigated.Load() {
				idleOnce.Do(func() { close(idle) })
			}
		}
	})

	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return stageErr(ctx, err)
	}

	select {
	case <-idle:
		return nil
	case <-runCtx.Done():
		return stageErr(ctx, errors.New("page never reached network idle"))
	}
}

// CaptureRaster takes a full-page PNG screenshot
func (s *chromedpSession) CaptureRaster(ctx context.Context) ([]byte, error) {
	runCtx, cancel := s.bounded(ctx)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(runCtx, chromedp.FullScreenshot(&buf, rasterQuality)); err != nil {
		return nil, stageErr(ctx, err)
	}
	return buf, nil
}

// CaptureDocument prints the page to PDF using the given paper format
func (s *chromedpSession) CaptureDocument(ctx context.Context, format PageFormat) ([]byte, error) {
	runCtx, cancel := s.bounded(ctx)
	defer cancel()

	params := buildPrintParams(format, s.scale)

	var pdfData []byte
	err := chromedp.Run(runCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(params.printBackground).
				WithPaperWidth(params.paperWidth).
				WithPaperHeight(params.paperHeight).
				WithMarginTop(params.margin).
				WithMarginRight(params.margin).
				WithMarginBottom(params.margin).
				WithMarginLeft(params.margin).
				WithScale(params.scale).
				WithLandscape(params.landscape).
				Do(ctx)
			if err != nil {
				return err
			}
			pdfData = data
			return nil
		}),
	)
	if err != nil {
		return nil, stageErr(ctx, err)
	}
	return pdfData, nil
}

// Close gracefully shuts the browser down, then releases the allocator
func (s *chromedpSession) Close() error {
	s.closeOnce.Do(func() {
		if s.ctx != nil {
			s.closeErr = chromedp.Cancel(s.ctx)
		}
		if s.tabCancel != nil {
			s.tabCancel()
		}
		if s.allocCancel != nil {
			s.allocCancel()
		}
		s.logger.Debug("chrome session closed")
	})
	return s.closeErr
}

// printParams holds the parameters for PDF printing, in inches
type printParams struct {
	paperWidth      float64
	paperHeight     float64
	margin          float64
	scale           float64
	landscape       bool
	printBackground bool
}

// buildPrintParams converts a PageFormat into Chrome print parameters
func buildPrintParams(format PageFormat, scale float64) *printParams {
	if format.WidthMM == 0 || format.HeightMM == 0 {
		format = PageFormatA4
	}
	if scale == 0 {
		scale = defaultScale
	}
	return &printParams{
		paperWidth:      mmToInches(format.WidthMM),
		paperHeight:     mmToInches(format.HeightMM),
		margin:          mmToInches(format.MarginMM),
		scale:           scale,
		landscape:       format.Landscape,
		printBackground: format.PrintBackground,
	}
}

// mmToInches converts millimeters to inches
func mmToInches(mm float64) float64 {
	return mm / 25.4
}

// Ensure ChromedpEngine implements Engine
var _ Engine = (*ChromedpEngine)(nil)
