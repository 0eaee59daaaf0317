package shared

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewBaseEntity(t *testing.T) {
	e := NewBaseEntity()

	assert.NotEqual(t, uuid.Nil, e.GetID())
	assert.False(t, e.GetCreatedAt().IsZero())
	assert.Equal(t, e.GetCreatedAt(), e.GetUpdatedAt())
}

func TestBaseEntity_Touch(t *testing.T) {
	e := NewBaseEntity()
	e.UpdatedAt = e.UpdatedAt.Add(-time.Minute)
	before := e.UpdatedAt

	e.Touch()

	assert.True(t, e.GetUpdatedAt().After(before))
}

func TestDomainError(t *testing.T) {
	err := NewDomainError("INVALID_SENDER", "Sender cannot be empty")

	var domainErr *DomainError
	assert.True(t, errors.As(error(err), &domainErr))
	assert.Equal(t, "INVALID_SENDER", domainErr.Code)
	assert.Equal(t, "Sender cannot be empty", err.Error())
}
