// Package mbox replays messages from an mbox file through the decoder, so
// the text a relay would send can be checked without a mail server.
package mbox

import (
	"errors"
	"fmt"
	"io"

	"github.com/emersion/go-mbox"
)

// Message is one entry of an mbox file. Index starts at 1.
type Message struct {
	Index int
	Raw   []byte
}

// Each calls fn for every message in r, in file order. It stops at the first
// error returned by fn or by the reader.
func Each(r io.Reader, fn func(Message) error) error {
	reader := mbox.NewReader(r)
	for index := 1; ; index++ {
		msgReader, err := reader.NextMessage()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read message %d: %w", index, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return fmt.Errorf("read message %d: %w", index, err)
		}

		if err := fn(Message{Index: index, Raw: raw}); err != nil {
			return err
		}
	}
}
