// Package delivery records the outcome of every chat message the bot handled.
package delivery

import (
	"context"
	"strings"
	"time"

	"github.com/dilly/tablebot/internal/domain/shared"
	"github.com/dilly/tablebot/internal/domain/table"
)

// Status is the final state of a handled message
type Status string

const (
	// StatusSent means a rendered table was delivered
	StatusSent Status = "sent"
	// StatusFailed means the table flow failed and the failure text was sent
	StatusFailed Status = "failed"
	// StatusEchoed means the message was not a command and was echoed back
	StatusEchoed Status = "echoed"
)

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	switch s {
	case StatusSent, StatusFailed, StatusEchoed:
		return true
	}
	return false
}

// AllStatuses lists every status in display order
func AllStatuses() []Status {
	return []Status{StatusSent, StatusFailed, StatusEchoed}
}

// Delivery is one handled inbound message
type Delivery struct {
	shared.BaseEntity
	MessageID string
	Sender    string
	Command   string
	ShopID    string
	Prompt    string
	Target    table.RenderTarget
	Artifact  string
	URL       string
	Status    Status
	Error     string
	Duration  time.Duration
}

var _ shared.Entity = (*Delivery)(nil)

// NewDelivery creates a delivery record for an inbound message
func NewDelivery(messageID, sender, command string) (*Delivery, error) {
	if strings.TrimSpace(messageID) == "" {
		return nil, shared.NewDomainError("INVALID_MESSAGE_ID", "Message ID cannot be empty")
	}
	if strings.TrimSpace(sender) == "" {
		return nil, shared.NewDomainError("INVALID_SENDER", "Sender cannot be empty")
	}
	return &Delivery{
		BaseEntity: shared.NewBaseEntity(),
		MessageID:  messageID,
		Sender:     sender,
		Command:    command,
	}, nil
}

// MarkSent records a successful table delivery
func (d *Delivery) MarkSent(artifact, url string) {
	d.Artifact = artifact
	d.URL = url
	d.Status = StatusSent
	d.Error = ""
	d.Touch()
}

// MarkFailed records a failed table flow
func (d *Delivery) MarkFailed(err error) {
	d.Status = StatusFailed
	if err != nil {
		d.Error = err.Error()
	}
	d.Touch()
}

// MarkEchoed records an echo reply
func (d *Delivery) MarkEchoed() {
	d.Status = StatusEchoed
	d.Touch()
}

// Repository persists delivery records
type Repository interface {
	Save(ctx context.Context, d *Delivery) error
	// FindByMessageID returns shared.ErrNotFound when no record exists
	FindByMessageID(ctx context.Context, messageID string) (*Delivery, error)
	ListRecent(ctx context.Context, limit int) ([]*Delivery, error)
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}
