package bot

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/dilly/tablebot/internal/domain/delivery"
	"github.com/dilly/tablebot/internal/domain/shared"
	"github.com/dilly/tablebot/internal/domain/table"
	"github.com/dilly/tablebot/internal/infrastructure/analytics"
	"github.com/dilly/tablebot/internal/infrastructure/rendering"
	"github.com/dilly/tablebot/internal/infrastructure/storage"
	"github.com/dilly/tablebot/internal/infrastructure/whatsapp"
)

type sentMessage struct {
	Kind     string
	To       string
	Body     string
	Link     string
	Filename string
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sentMessage
	failAll error
	failFor map[string]error
}

func (m *fakeMessenger) send(msg sentMessage) (*whatsapp.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	if err := m.failFor[msg.Kind]; err != nil {
		return nil, err
	}
	m.sent = append(m.sent, msg)
	return &whatsapp.SendResult{MessageID: "wamid.OUT"}, nil
}

func (m *fakeMessenger) SendText(_ context.Context, to, body string) (*whatsapp.SendResult, error) {
	return m.send(sentMessage{Kind: "text", To: to, Body: body})
}

func (m *fakeMessenger) SendImage(_ context.Context, to, link string) (*whatsapp.SendResult, error) {
	return m.send(sentMessage{Kind: "image", To: to, Link: link})
}

func (m *fakeMessenger) SendDocument(_ context.Context, to, link, filename string) (*whatsapp.SendResult, error) {
	return m.send(sentMessage{Kind: "document", To: to, Link: link, Filename: filename})
}

func (m *fakeMessenger) Sent() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

type fakeQueries struct {
	mu       sync.Mutex
	requests []analytics.QueryRequest
	data     *table.TableData
	err      error
}

func (q *fakeQueries) ProcessQuery(_ context.Context, req analytics.QueryRequest) (*table.TableData, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.requests = append(q.requests, req)
	if q.err != nil {
		return nil, q.err
	}
	if q.data != nil {
		return q.data, nil
	}
	return &table.TableData{
		Columns: []table.Column{{Key: "month"}, {Key: "ca"}},
		Rows:    [][]*table.Cell{{table.NewCell("janvier"), table.NewCell(1200)}},
	}, nil
}

type fakeLister struct {
	shops []string
}

func (l fakeLister) FetchShopIDs(context.Context) ([]string, error) {
	return l.shops, nil
}

type fakeRenderer struct {
	mu    sync.Mutex
	dir   string
	calls []rendering.RenderOptions
	err   error
}

func (r *fakeRenderer) RenderWithOptions(_ context.Context, data table.TableData, opts rendering.RenderOptions) (*rendering.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, opts)
	if r.err != nil {
		return nil, r.err
	}
	target := opts.Target.OrDefault()
	return &rendering.Artifact{
		ID:     "render-1",
		Path:   filepath.Join(r.dir, "output."+target.Extension()),
		Target: target,
		Size:   128,
	}, nil
}

type fakePublisher struct {
	baseURL string
	err     error
}

func (p *fakePublisher) Publish(_ context.Context, artifactPath string) (*storage.Published, error) {
	if p.err != nil {
		return nil, p.err
	}
	name := filepath.Base(artifactPath)
	return &storage.Published{URL: p.baseURL + "/output/" + name, Key: name, Size: 128}, nil
}

type memoryDeliveries struct {
	mu      sync.Mutex
	records map[string]delivery.Delivery
	err     error
}

func newMemoryDeliveries() *memoryDeliveries {
	return &memoryDeliveries{records: make(map[string]delivery.Delivery)}
}

func (r *memoryDeliveries) Save(_ context.Context, d *delivery.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.records[d.MessageID] = *d
	return nil
}

func (r *memoryDeliveries) FindByMessageID(_ context.Context, id string) (*delivery.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.records[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &d, nil
}

func (r *memoryDeliveries) ListRecent(context.Context, int) ([]*delivery.Delivery, error) {
	return nil, errors.New("not implemented")
}

func (r *memoryDeliveries) CountByStatus(context.Context) (map[delivery.Status]int64, error) {
	return nil, errors.New("not implemented")
}

type recordedMessage struct {
	Kind    string
	Outcome string
}

type fakeMessageRecorder struct {
	mu      sync.Mutex
	records []recordedMessage
}

func (r *fakeMessageRecorder) RecordMessage(_ context.Context, kind, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, recordedMessage{Kind: kind, Outcome: outcome})
}
