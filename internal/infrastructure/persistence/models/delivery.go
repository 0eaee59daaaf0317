package models

import (
	"time"

	"github.com/dilly/tablebot/internal/domain/delivery"
	"github.com/dilly/tablebot/internal/domain/table"
)

// DeliveryModel is the persistence model for handled chat messages
type DeliveryModel struct {
	BaseModel
	MessageID  string `gorm:"type:varchar(128);not null;uniqueIndex"`
	Sender     string `gorm:"type:varchar(32);not null;index"`
	Command    string `gorm:"type:varchar(16);not null"`
	ShopID     string `gorm:"type:varchar(128)"`
	Prompt     string `gorm:"type:text"`
	Target     string `gorm:"type:varchar(16)"`
	Artifact   string `gorm:"type:varchar(512)"`
	URL        string `gorm:"type:text"`
	Status     string `gorm:"type:varchar(16);not null;index"`
	Error      string `gorm:"type:text"`
	DurationMs int64
}

// TableName returns the table name for GORM
func (DeliveryModel) TableName() string {
	return "deliveries"
}

// ToDomain converts the persistence model to a domain entity
func (m *DeliveryModel) ToDomain() *delivery.Delivery {
	return &delivery.Delivery{
		BaseEntity: m.BaseModel.ToDomain(),
		MessageID: m.MessageID,
		Sender:    m.Sender,
		Command:   m.Command,
		ShopID:    m.ShopID,
		Prompt:    m.Prompt,
		Target:    table.RenderTarget(m.Target),
		Artifact:  m.Artifact,
		URL:       m.URL,
		Status:    delivery.Status(m.Status),
		Error:     m.Error,
		Duration:  time.Duration(m.DurationMs) * time.Millisecond,
	}
}

// DeliveryModelFromDomain creates a persistence model from a domain entity
func DeliveryModelFromDomain(d *delivery.Delivery) *DeliveryModel {
	m := &DeliveryModel{
		MessageID:  d.MessageID,
		Sender:     d.Sender,
		Command:    d.Command,
		ShopID:     d.ShopID,
		Prompt:     d.Prompt,
		Target:     string(d.Target),
		Artifact:   d.Artifact,
		URL:        d.URL,
		Status:     string(d.Status),
		Error:      d.Error,
		DurationMs: d.Duration.Milliseconds(),
	}
	m.FromDomainBaseEntity(d.BaseEntity)
	return m
}
