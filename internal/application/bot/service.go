package bot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dilly/tablebot/internal/domain/delivery"
	"github.com/dilly/tablebot/internal/domain/table"
	"github.com/dilly/tablebot/internal/infrastructure/analytics"
	"github.com/dilly/tablebot/internal/infrastructure/cache"
	"github.com/dilly/tablebot/internal/infrastructure/logger"
	"github.com/dilly/tablebot/internal/infrastructure/rendering"
	"github.com/dilly/tablebot/internal/infrastructure/storage"
	"github.com/dilly/tablebot/internal/infrastructure/whatsapp"
)

// DefaultDedupTTL is how long a message ID is remembered
const DefaultDedupTTL = 24 * time.Hour

const tracerName = "tablebot/bot"

// Outcomes reported to the MessageRecorder
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeDuplicate = "duplicate"
)

// Messenger sends replies to the chat user
type Messenger interface {
	SendText(ctx context.Context, to, body string) (*whatsapp.SendResult, error)
	SendImage(ctx context.Context, to, link string) (*whatsapp.SendResult, error)
	SendDocument(ctx context.Context, to, link, filename string) (*whatsapp.SendResult, error)
}

// QueryRunner turns a prompt into table data
type QueryRunner interface {
	ProcessQuery(ctx context.Context, req analytics.QueryRequest) (*table.TableData, error)
}

// ShopResolver picks the shop a query runs against
type ShopResolver interface {
	Default(ctx context.Context) string
	Resolve(ctx context.Context, candidate string) (string, bool)
}

// TableRenderer renders table data to an artifact file
type TableRenderer interface {
	RenderWithOptions(ctx context.Context, data table.TableData, opts rendering.RenderOptions) (*rendering.Artifact, error)
}

// MessageRecorder receives one observation per handled message
type MessageRecorder interface {
	RecordMessage(ctx context.Context, kind, outcome string, duration time.Duration)
}

// IncomingMessage is a text message addressed to the bot
type IncomingMessage struct {
	ID   string
	From string
	Text string
}

// IncomingFromWhatsApp converts a webhook message
func IncomingFromWhatsApp(m whatsapp.Message) IncomingMessage {
	return IncomingMessage{ID: m.ID, From: m.From, Text: m.Body()}
}

// ServiceConfig contains the optional collaborators and settings of Service
type ServiceConfig struct {
	// DefaultPrompt is used for "get table" and for unknown shops
	DefaultPrompt string
	// DedupTTL is how long message IDs are remembered (default: 24h)
	DedupTTL time.Duration
	// Idempotency drops redelivered messages (optional)
	Idempotency cache.IdempotencyStore
	// Deliveries records every handled message (optional)
	Deliveries delivery.Repository
	// Recorder is notified of every handled message (optional)
	Recorder MessageRecorder
	Logger   *zap.Logger
}

// Service handles inbound chat messages
type Service struct {
	messenger     Messenger
	queries       QueryRunner
	shops         ShopResolver
	renderer      TableRenderer
	publisher     storage.Publisher
	defaultPrompt string
	dedupTTL      time.Duration
	idempotency   cache.IdempotencyStore
	deliveries    delivery.Repository
	recorder      MessageRecorder
	tracer        trace.Tracer
	logger        *zap.Logger
}

// NewService creates a new bot service
func NewService(
	messenger Messenger,
	queries QueryRunner,
	shops ShopResolver,
	renderer TableRenderer,
	publisher storage.Publisher,
	config *ServiceConfig,
) (*Service, error) {
	if messenger == nil || queries == nil || shops == nil || renderer == nil || publisher == nil {
		return nil, errors.New("bot: messenger, queries, shops, renderer and publisher are required")
	}
	if config == nil {
		config = &ServiceConfig{}
	}

	s := &Service{
		messenger:     messenger,
		queries:       queries,
		shops:         shops,
		renderer:      renderer,
		publisher:     publisher,
		defaultPrompt: config.DefaultPrompt,
		dedupTTL:      config.DedupTTL,
		idempotency:   config.Idempotency,
		deliveries:    config.Deliveries,
		recorder:      config.Recorder,
		tracer:        otel.Tracer(tracerName),
		logger:        config.Logger,
	}
	if s.defaultPrompt == "" {
		s.defaultPrompt = DefaultPrompt
	}
	if s.dedupTTL <= 0 {
		s.dedupTTL = DefaultDedupTTL
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("bot")
	return s, nil
}

// HandleMessage answers one inbound message. Failures of the table flow are
// reported to the user with FailureText; the returned error is non-nil only
// when no reply could be sent.
func (s *Service) HandleMessage(ctx context.Context, msg IncomingMessage) error {
	start := time.Now()
	ctx, log := logger.WithMessageID(ctx, s.logger, msg.ID)

	if s.isDuplicate(ctx, log, msg.ID) {
		s.record(ctx, "", OutcomeDuplicate, start)
		return nil
	}

	cmd := ParseCommandWithDefault(msg.Text, s.defaultPrompt)
	log.Info("Received message",
		zap.String("from", msg.From),
		zap.String("text", cmd.Text),
		zap.String("command", string(cmd.Kind)))

	record, err := delivery.NewDelivery(msg.ID, msg.From, string(cmd.Kind))
	if err != nil {
		log.Debug("Delivery not recorded", zap.Error(err))
	}

	var (
		replyErr   error
		flowFailed bool
	)
	if cmd.IsTableRequest() {
		flowFailed, replyErr = s.replyWithTable(ctx, log, msg.From, cmd, record)
	} else {
		_, replyErr = s.messenger.SendText(ctx, msg.From, "Echo: "+cmd.Text)
		if record != nil {
			record.MarkEchoed()
		}
	}

	outcome := OutcomeSuccess
	if replyErr != nil || flowFailed {
		outcome = OutcomeFailed
	}
	if record != nil {
		record.Duration = time.Since(start)
		if replyErr != nil && record.Status != delivery.StatusFailed {
			record.MarkFailed(replyErr)
		}
		s.save(ctx, log, record)
	}
	s.record(ctx, string(cmd.Kind), outcome, start)

	if replyErr != nil {
		log.Error("Failed to reply", zap.String("to", msg.From), zap.Error(replyErr))
	}
	return replyErr
}

// replyWithTable runs the table flow and falls back to FailureText.
// failed reports whether the fallback was used.
func (s *Service) replyWithTable(ctx context.Context, log *zap.Logger, to string, cmd Command, record *delivery.Delivery) (failed bool, err error) {
	artifact, published, err := s.produceTable(ctx, log, cmd, record)
	if err == nil {
		err = s.sendArtifact(ctx, to, cmd.Target, artifact, published)
	}
	if err == nil {
		if record != nil {
			record.MarkSent(artifact.Path, published.URL)
		}
		return false, nil
	}

	log.Error("Error fetching or generating table", zap.Error(err))
	var apiErr *analytics.APIError
	if errors.As(err, &apiErr) {
		log.Error("Analytics API error details",
			zap.Int("status", apiErr.StatusCode),
			zap.String("body", apiErr.Body))
	}
	if record != nil {
		record.MarkFailed(err)
	}

	if _, sendErr := s.messenger.SendText(ctx, to, FailureText); sendErr != nil {
		return true, fmt.Errorf("send failure notice: %w", sendErr)
	}
	return true, nil
}

func (s *Service) produceTable(ctx context.Context, log *zap.Logger, cmd Command, record *delivery.Delivery) (_ *rendering.Artifact, _ *storage.Published, err error) {
	ctx, span := s.tracer.Start(ctx, "bot.produce_table",
		trace.WithAttributes(attribute.String("render.target", cmd.Target.String())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	shopID := s.shops.Default(ctx)
	prompt := cmd.Prompt
	if cmd.ShopClause {
		if id, ok := s.shops.Resolve(ctx, cmd.ShopCandidate); ok {
			shopID = id
		} else {
			log.Warn("Invalid shop ID, using default",
				zap.String("candidate", cmd.ShopCandidate),
				zap.String("shop_id", shopID))
			prompt = s.defaultPrompt
		}
	}

	if record != nil {
		record.ShopID = shopID
		record.Prompt = prompt
		record.Target = cmd.Target
	}
	log.Info("Using prompt", zap.String("prompt", prompt), zap.String("shop_id", shopID))
	span.SetAttributes(attribute.String("shop.id", shopID))

	data, err := s.queries.ProcessQuery(ctx, analytics.QueryRequest{Prompt: prompt, ShopID: shopID})
	if err != nil {
		return nil, nil, fmt.Errorf("fetch table: %w", err)
	}

	artifact, err := s.renderer.RenderWithOptions(ctx, *data, rendering.RenderOptions{Target: cmd.Target})
	if err != nil {
		return nil, nil, fmt.Errorf("render table: %w", err)
	}

	published, err := s.publisher.Publish(ctx, artifact.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("publish artifact: %w", err)
	}
	return artifact, published, nil
}

func (s *Service) sendArtifact(ctx context.Context, to string, target table.RenderTarget, artifact *rendering.Artifact, published *storage.Published) error {
	var err error
	if target == table.RenderTargetDocument {
		_, err = s.messenger.SendDocument(ctx, to, published.URL, filepath.Base(artifact.Path))
	} else {
		_, err = s.messenger.SendImage(ctx, to, published.URL)
	}
	if err != nil {
		return fmt.Errorf("send artifact: %w", err)
	}
	return nil
}

// HandleStatus logs a delivery status update for a message the bot sent
func (s *Service) HandleStatus(ctx context.Context, status whatsapp.Status) {
	logger.WithLogger(ctx, s.logger).Info("Received status update",
		zap.String("status", status.Status),
		zap.String("sent_message_id", status.ID),
		zap.String("recipient_id", status.RecipientID))
}

// isDuplicate marks id as processed and reports whether it already was.
// Store failures let the message through.
func (s *Service) isDuplicate(ctx context.Context, log *zap.Logger, id string) bool {
	if s.idempotency == nil || id == "" {
		return false
	}
	fresh, err := s.idempotency.MarkProcessed(ctx, id, s.dedupTTL)
	if err != nil {
		log.Warn("Idempotency check failed, processing message", zap.Error(err))
		return false
	}
	if !fresh {
		log.Info("Duplicate message skipped")
		return true
	}
	return false
}

func (s *Service) save(ctx context.Context, log *zap.Logger, record *delivery.Delivery) {
	if s.deliveries == nil {
		return
	}
	if err := s.deliveries.Save(ctx, record); err != nil {
		log.Warn("Failed to record delivery", zap.Error(err))
	}
}

func (s *Service) record(ctx context.Context, kind, outcome string, start time.Time) {
	if s.recorder != nil {
		s.recorder.RecordMessage(ctx, kind, outcome, time.Since(start))
	}
}
