// Package relay implements the outbound collaborators the indexer talks
// to after a successful save: posting the order to
// OpenSea's legacy orderbook-relay endpoint and archiving it to Arweave.
// Both are external interfaces the indexer does not control the
// availability of, so every call is rate-limited. PostOrder returns its
// failures to the caller; the Arweave sink logs its failures and drops
// them.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nftindexer/indexer/internal/domain"
)

const (
	mainnetBaseURL = "https://api.opensea.io"
	testnetBaseURL = "https://testnets-api.opensea.io"
	postOrderPath  = "/wyvern/v1/orders/post"
)

// OpenSeaOrder is the JSON body the relay posts. Field names mirror the
// Wyvern v1 orderbook-relay schema; order.params are flattened into the
// body rather than nested (the known v2 `postOrder` bug this indexer does
// not replicate, see DESIGN.md's Open Question decision).
type OpenSeaOrder struct {
	Exchange            string `json:"exchange"`
	Maker               string `json:"maker"`
	Taker               string `json:"taker"`
	MakerRelayerFee     string `json:"makerRelayerFee"`
	TakerRelayerFee     string `json:"takerRelayerFee"`
	MakerProtocolFee    string `json:"makerProtocolFee"`
	TakerProtocolFee    string `json:"takerProtocolFee"`
	FeeRecipient        string `json:"feeRecipient"`
	FeeMethod           int    `json:"feeMethod"`
	Side                int    `json:"side"`
	SaleKind            int    `json:"saleKind"`
	Target              string `json:"target"`
	HowToCall           int    `json:"howToCall"`
	Calldata            string `json:"calldata"`
	ReplacementPattern  string `json:"replacementPattern"`
	StaticTarget        string `json:"staticTarget"`
	StaticExtradata     string `json:"staticExtradata"`
	PaymentToken        string `json:"paymentToken"`
	BasePrice           string `json:"basePrice"`
	Extra               string `json:"extra"`
	ListingTime         string `json:"listingTime"`
	ExpirationTime      string `json:"expirationTime"`
	Salt                string `json:"salt"`
	MakerReferrerFee    string `json:"makerReferrerFee"`
	Quantity            string `json:"quantity"`
	Metadata            OpenSeaMetadata `json:"metadata"`
	Hash                string `json:"hash"`
}

// OpenSeaMetadata carries the token this order targets.
type OpenSeaMetadata struct {
	Asset  OpenSeaAsset `json:"asset"`
	Schema string       `json:"schema"`
}

// OpenSeaAsset identifies a token by contract + id.
type OpenSeaAsset struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// Client posts orders to OpenSea's legacy orderbook-relay endpoint.
type Client struct {
	http    *resty.Client
	rl      *TokenBucket
	apiKey  string
	testnet bool
	logger  *slog.Logger
}

// NewClient creates an OpenSea relay client.
func NewClient(apiKey string, testnet bool, rl *TokenBucket, logger *slog.Logger) *Client {
	baseURL := mainnetBaseURL
	if testnet {
		baseURL = testnetBaseURL
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{http: httpClient, rl: rl, apiKey: apiKey, testnet: testnet, logger: logger.With("component", "relay.opensea")}
}

// PostOrder relays a saved order to OpenSea. Contract
// and tokenID identify the asset metadata the endpoint expects alongside
// the order itself; tokenID may be nil for non-single-token orders,
// which OpenSea's legacy endpoint never accepted anyway.
func (c *Client) PostOrder(ctx context.Context, o *domain.Order, contract string, tokenID *big.Int) error {
	if err := c.rl.Wait(ctx); err != nil {
		return fmt.Errorf("relay: rate limit wait: %w", err)
	}

	body := c.buildPayload(o, contract, tokenID)

	req := c.http.R().SetContext(ctx).SetBody(body)
	if !c.testnet && c.apiKey != "" {
		req.SetHeader("X-Api-Key", c.apiKey)
	}

	resp, err := req.Post(postOrderPath)
	if err != nil {
		return fmt.Errorf("relay: post order %s: %w", o.Hash, err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return fmt.Errorf("relay: post order %s: status %d: %s", o.Hash, resp.StatusCode(), resp.String())
	}
	c.logger.Info("order relayed to opensea", "hash", o.Hash)
	return nil
}

func (c *Client) buildPayload(o *domain.Order, contract string, tokenID *big.Int) OpenSeaOrder {
	tid := ""
	if tokenID != nil {
		tid = tokenID.String()
	}
	return OpenSeaOrder{
		Maker:            o.Maker,
		Taker:            "0x0000000000000000000000000000000000000000",
		MakerRelayerFee:  "0",
		TakerRelayerFee:  fmt.Sprintf("%d", o.TakerFeeBPS),
		MakerProtocolFee: "0",
		TakerProtocolFee: "0",
		FeeRecipient:     o.SourceID,
		FeeMethod:        1,
		Target:           contract,
		PaymentToken:     o.Conduit,
		BasePrice:        o.Price.String(),
		ListingTime:      fmt.Sprintf("%d", o.ValidFrom.Unix()),
		ExpirationTime:   fmt.Sprintf("%d", o.ValidUntil.Unix()),
		MakerReferrerFee: "0",
		Quantity:         "1",
		Metadata: OpenSeaMetadata{
			Asset:  OpenSeaAsset{ID: tid, Address: contract},
			Schema: "ERC721",
		},
		Hash: o.Hash,
	}
}
