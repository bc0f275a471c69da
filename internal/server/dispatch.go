package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	nanoid "github.com/jaevor/go-nanoid"

	"github.com/Tyrowin/exchangechat/internal/audit"
	"github.com/Tyrowin/exchangechat/internal/command"
	"github.com/Tyrowin/exchangechat/internal/exchange"
	"github.com/Tyrowin/exchangechat/internal/metrics"
)

const requestIDLength = 12

// ReplyHeader precedes every rate reply.
const ReplyHeader = "Reply from PrivatBank to %s:"

// LookbackLimitMessage is broadcast when an archive request asks for too many days.
const LookbackLimitMessage = "Number of days should not exceed %d."

// Dispatcher turns inbound lines into broadcasts. Plain text is relayed as
// "name: text". Exchange commands are echoed, answered from the rate
// provider and recorded in the audit log.
type Dispatcher struct {
	broadcaster     Broadcaster
	fetcher         exchange.Fetcher
	audit           audit.Log
	metrics         *metrics.Metrics
	logger          *slog.Logger
	now             func() time.Time
	newRequestID    func() string
	concurrency     int
	maxLookbackDays int
	auditTimeout    time.Duration
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics sets the collectors commands are counted in.
func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithClock sets the source of "today" for archive requests and audit entries.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithArchiveConcurrency bounds the number of in-flight archive requests.
func WithArchiveConcurrency(n int) DispatcherOption {
	return func(d *Dispatcher) {
		d.concurrency = n
	}
}

// WithMaxLookbackDays caps the archive request size. Zero disables the cap.
func WithMaxLookbackDays(n int) DispatcherOption {
	return func(d *Dispatcher) {
		d.maxLookbackDays = n
	}
}

// WithAuditTimeout bounds each audit write.
func WithAuditTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.auditTimeout = timeout
		}
	}
}

// NewDispatcher wires a dispatcher. auditLog may be nil to disable auditing.
func NewDispatcher(broadcaster Broadcaster, fetcher exchange.Fetcher, auditLog audit.Log, opts ...DispatcherOption) (*Dispatcher, error) {
	if broadcaster == nil {
		return nil, errors.New("dispatcher requires a broadcaster")
	}
	if fetcher == nil {
		return nil, errors.New("dispatcher requires a rate fetcher")
	}

	newRequestID, err := nanoid.Standard(requestIDLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create request id generator: %w", err)
	}

	d := &Dispatcher{
		broadcaster:  broadcaster,
		fetcher:      fetcher,
		audit:        auditLog,
		metrics:      metrics.New(),
		logger:       slog.Default(),
		now:          time.Now,
		newRequestID: newRequestID,
		concurrency:  5,
		auditTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Handle processes one line from sender. All output goes through the
// broadcaster, so the sender sees its own messages like everyone else.
func (d *Dispatcher) Handle(ctx context.Context, sender, line string) {
	cmd, err := command.Parse(line)
	if err != nil {
		if errors.Is(err, command.ErrMalformedCommand) {
			d.metrics.RecordCommand(metrics.CommandMalformed)
			d.logger.Debug("Malformed exchange command", "name", sender, "error", err)
			d.echo(sender, line)
			d.broadcaster.Broadcast(command.UsageMessage)
			return
		}
		d.logger.Error("Failed to parse line", "name", sender, "error", err)
		return
	}

	switch c := cmd.(type) {
	case command.PlainMessage:
		d.metrics.RecordCommand(metrics.CommandPlain)
		d.echo(sender, c.Text)
	case command.Exchange:
		d.echo(sender, line)
		d.handleExchange(ctx, sender, c)
	}
}

func (d *Dispatcher) echo(sender, text string) {
	d.broadcaster.Broadcast(sender + ": " + text)
}

func (d *Dispatcher) reply(sender, body string) {
	d.broadcaster.Broadcast(fmt.Sprintf(ReplyHeader, sender))
	d.broadcaster.Broadcast(body)
}

func (d *Dispatcher) handleExchange(ctx context.Context, sender string, cmd command.Exchange) {
	logger := d.logger.With("request_id", d.newRequestID(), "name", sender)

	for _, notice := range cmd.Notices() {
		d.broadcaster.Broadcast(notice)
	}

	if !cmd.IsArchive() {
		d.metrics.RecordCommand(metrics.CommandCurrent)
		d.handleCurrent(ctx, logger, sender)
		return
	}

	d.metrics.RecordCommand(metrics.CommandArchive)
	d.handleArchive(ctx, logger, sender, cmd)
}

func (d *Dispatcher) handleCurrent(ctx context.Context, logger *slog.Logger, sender string) {
	logger.Info("Fetching current rates")

	rates, err := d.fetcher.Current(ctx)
	d.recordAudit(ctx, logger)
	if err != nil {
		logger.Warn("Current rate request failed", "error", err)
	}

	if ctx.Err() != nil {
		logger.Info("Session ended before reply; discarding result")
		return
	}
	d.reply(sender, exchange.RenderCurrent(rates, err))
}

func (d *Dispatcher) handleArchive(ctx context.Context, logger *slog.Logger, sender string, cmd command.Exchange) {
	days := *cmd.LookbackDays
	if d.maxLookbackDays > 0 && days > d.maxLookbackDays {
		logger.Info("Archive request exceeds lookback limit", "days", days, "limit", d.maxLookbackDays)
		d.broadcaster.Broadcast(fmt.Sprintf(LookbackLimitMessage, d.maxLookbackDays))
		return
	}

	dates := exchange.Dates(d.now(), days)
	logger.Info("Fetching archive rates", "days", days, "currencies", cmd.Currencies)

	results := exchange.FetchArchive(ctx, d.fetcher, dates, cmd.Currencies, d.concurrency)
	d.recordAudit(ctx, logger)

	failed := 0
	for _, day := range results {
		if day.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		logger.Warn("Some archive dates failed", "failed", failed, "total", len(results))
	}

	if ctx.Err() != nil {
		logger.Info("Session ended before reply; discarding result")
		return
	}
	d.reply(sender, exchange.RenderArchive(results))
}

// recordAudit appends one audit entry. Failures are logged and never reach
// the chat.
func (d *Dispatcher) recordAudit(ctx context.Context, logger *slog.Logger) {
	if d.audit == nil {
		return
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.auditTimeout)
	defer cancel()

	if err := d.audit.Record(auditCtx, d.now()); err != nil {
		logger.Warn("Failed to write audit entry", "error", err)
	}
}
