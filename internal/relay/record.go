package relay

import (
	"unicode/utf8"

	"mailrelay/internal/message"
)

// MaxTextLength is the largest text, in characters, the chat service accepts
// in a single message.
const MaxTextLength = 4096

// Record is the delivery-ready form of one unseen message.
type Record struct {
	UID       uint32
	Sender    string
	Text      string
	Truncated bool
	Kind      message.BodyKind
}

// FormatRecord builds the chat text for a decoded message, cutting it to
// MaxTextLength characters after the sender prefix is added.
func FormatRecord(uid uint32, sender string, decoded message.Decoded) Record {
	text := sender + " wrote: " + decoded.Body
	truncated := false
	if utf8.RuneCountInString(text) > MaxTextLength {
		text = truncateRunes(text, MaxTextLength)
		truncated = true
	}
	return Record{
		UID:       uid,
		Sender:    sender,
		Text:      text,
		Truncated: truncated,
		Kind:      decoded.Kind,
	}
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
