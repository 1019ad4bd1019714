package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrderKind_IsV23(t *testing.T) {
	assert.True(t, KindWyvernV23SingleToken.IsV23())
	assert.True(t, KindWyvernV23TokenList.IsV23())
	assert.False(t, KindWyvernV2SingleToken.IsV23())
	assert.False(t, KindX2Y2SingleToken.IsV23())
}

func TestOrderKind_IsEscrowed(t *testing.T) {
	assert.True(t, KindFoundationSingleToken.IsEscrowed())
	assert.True(t, KindCryptoPunksSingleToken.IsEscrowed())
	assert.False(t, KindWyvernV2SingleToken.IsEscrowed())
}

func TestOrderKind_IsX2Y2(t *testing.T) {
	assert.True(t, KindX2Y2SingleToken.IsX2Y2())
	assert.False(t, KindWyvernV2SingleToken.IsX2Y2())
	assert.False(t, KindFoundationSingleToken.IsX2Y2())
}

func TestFillabilityStatus_IsTerminal(t *testing.T) {
	assert.True(t, Cancelled.IsTerminal())
	assert.True(t, Filled.IsTerminal())
	assert.False(t, Fillable.IsTerminal())
	assert.False(t, NoBalance.IsTerminal())
	assert.False(t, Expired.IsTerminal())
}

func TestOrder_IsWithinValidWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	o := &Order{ValidUntil: now.Add(time.Hour)}
	assert.True(t, o.IsWithinValidWindow(now))

	expired := &Order{ValidUntil: now.Add(-time.Hour)}
	assert.False(t, expired.IsWithinValidWindow(now))
}
