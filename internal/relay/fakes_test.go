package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeMailbox is an in-memory mail store shared by the sessions it opens.
type fakeMailbox struct {
	mu       sync.Mutex
	order    []uint32
	from     map[uint32]string
	raw      map[uint32][]byte
	seen     map[uint32]int
	selected []string
	fetches  [][]uint32
	logouts  int

	dialErr   error
	selectErr error
	searchErr map[string]error
	fetchErr  error
	markErr   map[uint32]error
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{
		from:      map[uint32]string{},
		raw:       map[uint32][]byte{},
		seen:      map[uint32]int{},
		searchErr: map[string]error{},
		markErr:   map[uint32]error{},
	}
}

func (m *fakeMailbox) add(uid uint32, searchFrom, raw string) {
	m.order = append(m.order, uid)
	m.from[uid] = searchFrom
	m.raw[uid] = []byte(strings.ReplaceAll(raw, "\n", "\r\n"))
}

func (m *fakeMailbox) addPlain(uid uint32, from, body string) {
	m.add(uid, from, fmt.Sprintf("From: %s\nContent-Type: text/plain; charset=utf-8\n\n%s", from, body))
}

func (m *fakeMailbox) Dial(ctx context.Context) (Session, error) {
	if m.dialErr != nil {
		return nil, m.dialErr
	}
	return &fakeSession{box: m}, nil
}

type fakeSession struct {
	box *fakeMailbox
}

func (s *fakeSession) Select(mailbox string, readOnly bool) error {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	s.box.selected = append(s.box.selected, mailbox)
	if readOnly {
		return errors.New("mailbox selected read-only")
	}
	return s.box.selectErr
}

func (s *fakeSession) SearchUnseenFrom(sender string) ([]uint32, error) {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	if err := s.box.searchErr[sender]; err != nil {
		return nil, err
	}
	var uids []uint32
	for _, uid := range s.box.order {
		if s.box.seen[uid] == 0 && strings.EqualFold(s.box.from[uid], sender) {
			uids = append(uids, uid)
		}
	}
	return uids, nil
}

func (s *fakeSession) Fetch(uids []uint32) ([]RawMessage, error) {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	s.box.fetches = append(s.box.fetches, uids)
	if s.box.fetchErr != nil {
		return nil, s.box.fetchErr
	}
	out := make([]RawMessage, 0, len(uids))
	for _, uid := range uids {
		out = append(out, RawMessage{UID: uid, Body: s.box.raw[uid]})
	}
	return out, nil
}

func (s *fakeSession) MarkSeen(uid uint32) error {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	if err := s.box.markErr[uid]; err != nil {
		return err
	}
	s.box.seen[uid]++
	return nil
}

func (s *fakeSession) Logout() error {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	s.box.logouts++
	return nil
}

type delivery struct {
	channel string
	text    string
}

type fakeDeliverer struct {
	mu        sync.Mutex
	delivered []delivery
	attempts  int
	// failWhen makes delivery fail for texts containing the substring.
	failWhen string
	onDeliver func()
}

func (d *fakeDeliverer) Deliver(ctx context.Context, channel, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	if d.onDeliver != nil {
		d.onDeliver()
	}
	if d.failWhen != "" && strings.Contains(text, d.failWhen) {
		return &DeliveryError{Channel: channel, Err: errors.New("too many requests")}
	}
	d.delivered = append(d.delivered, delivery{channel: channel, text: text})
	return nil
}

func (d *fakeDeliverer) texts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.delivered))
	for _, item := range d.delivered {
		out = append(out, item.text)
	}
	return out
}
