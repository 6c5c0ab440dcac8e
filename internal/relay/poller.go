// Package relay moves unseen mail from trusted senders into a chat channel.
//
// A Poller runs cycles: open a mail session, select the mailbox, scan each
// trusted sender in order, deliver every record and flag its message as
// seen once delivery succeeded, log out, then sleep. Delivery is
// at-least-once: a message whose flag update fails is delivered again on the
// next cycle.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMailbox  = "INBOX"
	DefaultInterval = 15 * time.Second
)

// Options configures a Poller.
type Options struct {
	Mailbox string
	// Senders are scanned in this order every cycle.
	Senders []string
	Channel string
	// Interval is the sleep between the end of one cycle and the start of the next.
	Interval time.Duration
	// CallTimeout bounds dialing and each delivery. Zero means no bound.
	CallTimeout time.Duration
}

// CycleStats summarizes one cycle.
type CycleStats struct {
	Senders        int
	Matched        int
	Delivered      int
	DeliveryFailed int
	DecodeFailed   int
	FlagFailed     int
}

func (s CycleStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("senders", s.Senders),
		slog.Int("matched", s.Matched),
		slog.Int("delivered", s.Delivered),
		slog.Int("delivery_failed", s.DeliveryFailed),
		slog.Int("decode_failed", s.DecodeFailed),
		slog.Int("flag_failed", s.FlagFailed),
	)
}

// Poller orchestrates relay cycles.
type Poller struct {
	dialer    Dialer
	deliverer Deliverer
	opts      Options
	logger    *slog.Logger
}

// NewPoller creates a Poller. Empty options fall back to DefaultMailbox and
// DefaultInterval.
func NewPoller(dialer Dialer, deliverer Deliverer, opts Options, logger *slog.Logger) *Poller {
	if opts.Mailbox == "" {
		opts.Mailbox = DefaultMailbox
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		dialer:    dialer,
		deliverer: deliverer,
		opts:      opts,
		logger:    logger,
	}
}

// Run executes cycles until ctx is cancelled. Cancellation is honoured
// between cycles and during the sleep; a cycle in flight is allowed to
// finish. Cycles aborted by connection, auth or protocol errors are logged
// and retried after the interval. Any other error stops the loop and is
// returned.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("relay started",
		slog.String("mailbox", p.opts.Mailbox),
		slog.Int("senders", len(p.opts.Senders)),
		slog.Duration("interval", p.opts.Interval))

	for {
		if ctx.Err() != nil {
			p.logger.Info("relay stopped")
			return nil
		}

		if _, err := p.RunCycle(ctx); err != nil {
			if !IsRecoverable(err) {
				p.logger.Error("cycle failed with unexpected error", slog.Any("error", err))
				return err
			}
			p.logger.Error("cycle aborted", slog.Any("error", err))
		}

		timer := time.NewTimer(p.opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("relay stopped")
			return nil
		case <-timer.C:
		}
	}
}

// RunCycle performs a single connect, scan, deliver and logout pass. The
// session is logged out on every path once it has been opened.
func (p *Poller) RunCycle(ctx context.Context) (CycleStats, error) {
	var stats CycleStats

	// The cycle is not interrupted by cancellation of the parent; only the
	// per-call timeouts bound it.
	ctx = context.WithoutCancel(ctx)
	logger := p.logger.With(slog.String("cycle", uuid.NewString()))

	session, err := p.dial(ctx)
	if err != nil {
		return stats, fmt.Errorf("open mail session: %w", err)
	}
	logger.Info("logged in to mail server")

	defer func() {
		if err := session.Logout(); err != nil {
			logger.Warn("logout failed", slog.Any("error", err))
			return
		}
		logger.Info("logged out from mail server")
	}()

	if err := session.Select(p.opts.Mailbox, false); err != nil {
		return stats, fmt.Errorf("select %s: %w", p.opts.Mailbox, err)
	}

	scanner := NewScanner(session, logger)
	for _, sender := range p.opts.Senders {
		stats.Senders++

		records, scanStats, err := scanner.Scan(sender)
		stats.Matched += scanStats.Matched
		stats.DecodeFailed += scanStats.DecodeFailed
		if err != nil {
			if IsConnectionError(err) || !IsRecoverable(err) {
				return stats, err
			}
			logger.Error("skipping sender", slog.String("sender", sender), slog.Any("error", err))
			continue
		}

		for _, record := range records {
			if err := p.deliver(ctx, logger, session, record, &stats); err != nil {
				return stats, err
			}
		}
	}

	logger.Info("cycle finished", slog.Any("stats", stats))
	return stats, nil
}

// deliver sends one record and flags its message. A dropped connection or
// an unclassified flag error is returned; every other failure is logged and
// counted.
func (p *Poller) deliver(ctx context.Context, logger *slog.Logger, session Session, record Record, stats *CycleStats) error {
	logger = logger.With(slog.Any("uid", record.UID), slog.String("sender", record.Sender))

	callCtx, cancel := p.callContext(ctx)
	err := p.deliverer.Deliver(callCtx, p.opts.Channel, record.Text)
	cancel()
	if err != nil {
		stats.DeliveryFailed++
		logger.Error("delivery failed, message left unseen", slog.Any("error", err))
		return nil
	}

	if err := session.MarkSeen(record.UID); err != nil {
		stats.FlagFailed++
		logger.Error("delivered but could not mark message seen", slog.Any("error", err))
		if IsConnectionError(err) || !IsRecoverable(err) {
			return fmt.Errorf("mark uid %d seen: %w", record.UID, err)
		}
		return nil
	}

	stats.Delivered++
	logger.Info("message relayed", slog.String("preview", preview(record.Text)))
	return nil
}

func (p *Poller) dial(ctx context.Context) (Session, error) {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()
	return p.dialer.Dial(callCtx)
}

func (p *Poller) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opts.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.opts.CallTimeout)
}

func preview(text string) string {
	const limit = 200
	return truncateRunes(text, limit)
}
