// Package imap adapts the go-imap v1 client to the relay's mail session.
package imap

import (
	"errors"
	"io"
	"net"

	"mailrelay/internal/relay"

	"github.com/emersion/go-imap"
)

// Session is a logged-in IMAP connection.
type Session struct {
	client Client
}

// NewSession wraps an already authenticated client.
func NewSession(client Client) *Session {
	return &Session{client: client}
}

// Select opens mailbox; readOnly selects it with EXAMINE.
func (s *Session) Select(mailbox string, readOnly bool) error {
	if _, err := s.client.Select(mailbox, readOnly); err != nil {
		return s.classify("select", err)
	}
	return nil
}

// SearchUnseenFrom returns the UIDs of unseen messages whose From matches sender.
func (s *Session) SearchUnseenFrom(sender string) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Header.Add("From", sender)

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, s.classify("search", err)
	}
	return uids, nil
}

// Fetch retrieves the full messages with BODY.PEEK[] so that reading them
// leaves \Seen untouched.
func (s *Session) Fetch(uids []uint32) ([]relay.RawMessage, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	ch := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqset, items, ch)
	}()

	messages := make([]relay.RawMessage, 0, len(uids))
	var readErr error
	for msg := range ch {
		if msg == nil {
			continue
		}
		raw := relay.RawMessage{UID: msg.Uid}
		if body := msg.GetBody(section); body != nil {
			data, err := io.ReadAll(body)
			if err != nil && readErr == nil {
				readErr = err
			}
			raw.Body = data
		}
		messages = append(messages, raw)
	}
	if err := <-done; err != nil {
		return nil, s.classify("fetch", err)
	}
	if readErr != nil {
		return nil, s.classify("fetch", readErr)
	}

	return messages, nil
}

// MarkSeen adds \Seen to the message with uid.
func (s *Session) MarkSeen(uid uint32) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := s.client.UidStore(seqset, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		return s.classify("store", err)
	}
	return nil
}

// Logout ends the session. A connection that already dropped is not an error.
func (s *Session) Logout() error {
	if s.client.State() == imap.LogoutState {
		return nil
	}
	if err := s.client.Logout(); err != nil {
		return s.classify("logout", err)
	}
	return nil
}

func (s *Session) classify(op string, err error) error {
	var netErr net.Error
	if s.client.State() == imap.LogoutState || errors.As(err, &netErr) || errors.Is(err, io.EOF) {
		return &relay.ConnectionError{Op: op, Err: err}
	}
	return &relay.ProtocolError{Op: op, Err: err}
}
