package relay

import (
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nftindexer/indexer/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOrder() *domain.Order {
	return &domain.Order{
		Hash:        "0xdeadbeef",
		Maker:       "0xmaker",
		Price:       big.NewInt(1_000_000_000_000_000_000),
		FeeBPS:      250,
		TakerFeeBPS: 250,
		SourceID:    "0xsource",
		Conduit:     "0xweth",
		ValidFrom:   time.Unix(1000, 0),
		ValidUntil:  time.Unix(2000, 0),
	}
}

func TestClient_BuildPayload_MapsOrderFieldsAndAsset(t *testing.T) {
	c := NewClient("key", false, NewTokenBucket(5, 5), testLogger())
	o := testOrder()

	payload := c.buildPayload(o, "0xcontract", big.NewInt(42))

	assert.Equal(t, o.Hash, payload.Hash)
	assert.Equal(t, o.Maker, payload.Maker)
	assert.Equal(t, o.Price.String(), payload.BasePrice)
	assert.Equal(t, "250", payload.TakerRelayerFee)
	assert.Equal(t, o.SourceID, payload.FeeRecipient)
	assert.Equal(t, o.Conduit, payload.PaymentToken)
	assert.Equal(t, "1000", payload.ListingTime)
	assert.Equal(t, "2000", payload.ExpirationTime)
	assert.Equal(t, "0xcontract", payload.Metadata.Asset.Address)
	assert.Equal(t, "42", payload.Metadata.Asset.ID)
}

func TestClient_BuildPayload_NilTokenIDLeavesAssetIDEmpty(t *testing.T) {
	c := NewClient("key", false, NewTokenBucket(5, 5), testLogger())
	o := testOrder()

	payload := c.buildPayload(o, "0xcontract", nil)

	assert.Equal(t, "", payload.Metadata.Asset.ID)
}

func TestClient_MainnetUsesMainnetBaseURL(t *testing.T) {
	c := NewClient("key", false, NewTokenBucket(5, 5), testLogger())
	assert.Equal(t, mainnetBaseURL, c.http.BaseURL)
}

func TestClient_TestnetUsesTestnetBaseURL(t *testing.T) {
	c := NewClient("key", true, NewTokenBucket(5, 5), testLogger())
	assert.Equal(t, testnetBaseURL, c.http.BaseURL)
}
