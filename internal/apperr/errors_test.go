package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("bad input")))
	assert.Equal(t, KindInsufficientFunds, KindOf(InsufficientFunds("broke")))
	assert.Equal(t, KindInvalidEscrowState, KindOf(InvalidEscrowState("released")))

	// Plain errors default to internal.
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestKindOf_Wrapped(t *testing.T) {
	inner := StateConflict("already paid")
	wrapped := fmt.Errorf("handling request: %w", inner)

	assert.Equal(t, KindStateConflict, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindStateConflict))
	assert.False(t, Is(wrapped, KindValidation))
}

func TestErrorString(t *testing.T) {
	e := Internal("query failed", errors.New("connection reset"))
	assert.Equal(t, "query failed: connection reset", e.Error())
	assert.Equal(t, "connection reset", errors.Unwrap(e).Error())

	assert.Equal(t, "not yours", Authorization("not yours").Error())
}
