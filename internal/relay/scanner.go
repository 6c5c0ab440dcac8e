package relay

import (
	"fmt"
	"log/slog"
	"strings"

	"mailrelay/internal/message"
)

// ScanStats counts what a single Scan saw.
type ScanStats struct {
	Matched      int
	DecodeFailed int
}

// Scanner turns the unseen messages of one trusted sender into records.
type Scanner struct {
	session Session
	logger  *slog.Logger
}

// NewScanner creates a Scanner over an already selected mailbox.
func NewScanner(session Session, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{session: session, logger: logger}
}

// Scan searches the unseen messages from sender, fetches them in one batch
// and decodes each one. Messages that fail to decode are logged and left
// out of the result so they stay unseen. Only search and fetch failures are
// returned as errors.
func (s *Scanner) Scan(sender string) ([]Record, ScanStats, error) {
	var stats ScanStats
	logger := s.logger.With(slog.String("sender", sender))

	uids, err := s.session.SearchUnseenFrom(sender)
	if err != nil {
		return nil, stats, fmt.Errorf("search unseen from %s: %w", sender, err)
	}
	stats.Matched = len(uids)
	if len(uids) == 0 {
		logger.Debug("no unseen messages")
		return nil, stats, nil
	}

	logger.Info("found unseen messages", slog.Int("count", len(uids)))

	raws, err := s.session.Fetch(uids)
	if err != nil {
		return nil, stats, fmt.Errorf("fetch messages from %s: %w", sender, err)
	}

	records := make([]Record, 0, len(raws))
	for _, raw := range raws {
		msgLogger := logger.With(slog.Any("uid", raw.UID))

		decoded, err := message.Decode(raw.Body)
		if err != nil {
			stats.DecodeFailed++
			msgLogger.Error("skipping undecodable message", slog.Any("error", err))
			continue
		}

		from := decoded.Sender
		switch {
		case from == "":
			from = sender
			msgLogger.Warn("message has no usable From header, using search sender")
		case !strings.EqualFold(from, sender):
			msgLogger.Warn("From header differs from trusted sender", slog.String("from", from))
		}

		if !decoded.HasPlainText() {
			msgLogger.Warn("no text/plain part found in multipart message")
		}

		record := FormatRecord(raw.UID, from, decoded)
		if record.Truncated {
			msgLogger.Warn("message text was too long and was cut",
				slog.Int("limit", MaxTextLength))
		}
		records = append(records, record)
	}

	return records, stats, nil
}
