package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultBaseURL is the PrivatBank public API root.
const DefaultBaseURL = "https://api.privatbank.ua/p24api"

const (
	endpointCurrent = "current"
	endpointArchive = "archive"
)

// Config controls how the provider is reached.
type Config struct {
	BaseURL       string
	HTTPTimeout   time.Duration
	MaxRetries    uint64
	RetryInterval time.Duration
}

// Observer receives one call per provider request.
type Observer interface {
	ObserveProviderRequest(endpoint, outcome string, elapsed time.Duration)
}

// Option customizes a PrivatBank provider.
type Option func(*PrivatBank)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *PrivatBank) {
		p.httpClient = client
	}
}

// WithObserver reports request outcomes and latencies to o.
func WithObserver(o Observer) Option {
	return func(p *PrivatBank) {
		p.observer = o
	}
}

// PrivatBank implements Fetcher over the PrivatBank HTTP API.
type PrivatBank struct {
	baseURL       string
	httpClient    *http.Client
	maxRetries    uint64
	retryInterval time.Duration
	logger        *slog.Logger
	observer      Observer
}

// NewPrivatBank creates a provider from cfg. Zero values fall back to the
// public endpoint, a 10s timeout and a 200ms first retry interval.
func NewPrivatBank(cfg Config, logger *slog.Logger, opts ...Option) *PrivatBank {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &PrivatBank{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:    &http.Client{Timeout: cfg.HTTPTimeout},
		maxRetries:    cfg.MaxRetries,
		retryInterval: cfg.RetryInterval,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Current fetches the current cash rates.
func (p *PrivatBank) Current(ctx context.Context) ([]CurrentRate, error) {
	var rates []CurrentRate
	if err := p.get(ctx, endpointCurrent, p.baseURL+"/pubinfo?exchange&coursid=5", &rates); err != nil {
		return nil, err
	}
	return rates, nil
}

// Archive fetches the rates published for date (DD.MM.YYYY).
func (p *PrivatBank) Archive(ctx context.Context, date string) (*ArchiveRecord, error) {
	var record ArchiveRecord
	if err := p.get(ctx, endpointArchive, p.baseURL+"/exchange_rates?json&date="+url.QueryEscape(date), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (p *PrivatBank) get(ctx context.Context, endpoint, rawURL string, target any) error {
	start := time.Now()

	op := func() error {
		return p.doGET(ctx, rawURL, target)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, p.maxRetries), ctx)

	err := backoff.Retry(op, policy)
	p.observe(endpoint, err, time.Since(start))
	if err != nil {
		p.logger.Warn("Rate provider request failed", "endpoint", endpoint, "url", rawURL, "error", err)
		return fmt.Errorf("%w: %s: %v", ErrTransport, endpoint, err)
	}
	return nil
}

// doGET performs one attempt. Server errors and network faults are retried;
// anything else is marked permanent.
func (p *PrivatBank) doGET(ctx context.Context, rawURL string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "exchangechat/privatbank")

	res, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= http.StatusInternalServerError {
		_, _ = io.Copy(io.Discard, res.Body)
		return fmt.Errorf("http %d", res.StatusCode)
	}
	if res.StatusCode != http.StatusOK {
		return backoff.Permanent(fmt.Errorf("http %d", res.StatusCode))
	}

	if err := json.NewDecoder(res.Body).Decode(target); err != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (p *PrivatBank) observe(endpoint string, err error, elapsed time.Duration) {
	if p.observer == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.observer.ObserveProviderRequest(endpoint, outcome, elapsed)
}
