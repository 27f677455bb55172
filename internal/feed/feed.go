// Package feed supplies the per-tick market price. I/O failure is fully
// absorbed: callers always get a usable price and only learn about a degraded
// feed through the source tag.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"

	"github.com/rs/zerolog"

	"PriceArena/internal/game"
)

// DefaultSpotURL is the Coinbase BTC-USD spot endpoint.
const DefaultSpotURL = "https://api.coinbase.com/v2/prices/BTC-USD/spot"

// simulatedStep bounds the random walk applied per degraded tick.
const simulatedStep = 25.0

// Feed fetches the current spot price, degrading to a synthetic random walk
// around the last known price on any failure. Not safe for concurrent use;
// the orchestrator loop owns it.
type Feed struct {
	client    *http.Client
	url       string
	lastKnown float64
	step      func() float64
	log       zerolog.Logger
}

type Option func(*Feed)

// WithURL overrides the spot endpoint (tests point this at httptest).
func WithURL(url string) Option {
	return func(f *Feed) { f.url = url }
}

// WithStep overrides the random-walk step for deterministic tests.
func WithStep(step func() float64) Option {
	return func(f *Feed) { f.step = step }
}

func New(client *http.Client, log zerolog.Logger, opts ...Option) *Feed {
	f := &Feed{
		client:    client,
		url:       DefaultSpotURL,
		lastKnown: game.FallbackPrice,
		step:      func() float64 { return (rand.Float64() - 0.5) * 2 * simulatedStep },
		log:       log,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// spotResponse mirrors the Coinbase wire format: {"data":{"amount":"96123.45"}}.
type spotResponse struct {
	Data struct {
		Amount json.Number `json:"amount"`
	} `json:"data"`
}

// Fetch returns the current price and its source. It never returns an error:
// timeouts, bad status codes, and malformed bodies all collapse into a
// simulated step from the last known price. The caller bounds latency via
// ctx so a slow feed cannot straddle tick boundaries.
func (f *Feed) Fetch(ctx context.Context) (float64, game.PriceSource) {
	price, err := f.fetchLive(ctx)
	if err != nil {
		f.log.Debug().Err(err).Float64("last_known", f.lastKnown).Msg("price feed degraded to simulated")
		f.lastKnown += f.step()
		return f.lastKnown, game.SourceSimulated
	}
	f.lastKnown = price
	return price, game.SourceLive
}

func (f *Feed) fetchLive(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return 0, fmt.Errorf("build spot request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("spot request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("spot request: status %d", resp.StatusCode)
	}

	var body spotResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode spot response: %w", err)
	}

	price, err := body.Data.Amount.Float64()
	if err != nil {
		return 0, fmt.Errorf("parse spot amount %q: %w", body.Data.Amount, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("non-positive spot price %v", price)
	}
	return price, nil
}
