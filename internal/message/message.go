// Package message turns raw RFC 5322 messages into a sender address and a
// plain-text body suitable for relaying to a chat channel.
package message

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// NoPlainTextBody replaces the body of a multipart message that carries no
// inline text/plain part.
const NoPlainTextBody = "No text/plain was found in multipart email!"

// BodyKind tags how the body of a decoded message was obtained.
type BodyKind int

const (
	// SinglePart is a non-multipart message whose payload is the body.
	SinglePart BodyKind = iota
	// MultipartWithText is a multipart message with a text/plain part.
	MultipartWithText
	// MultipartNoText is a multipart message without any text/plain part.
	MultipartNoText
)

func (k BodyKind) String() string {
	switch k {
	case SinglePart:
		return "single-part"
	case MultipartWithText:
		return "multipart-with-text"
	case MultipartNoText:
		return "multipart-no-text"
	default:
		return fmt.Sprintf("BodyKind(%d)", int(k))
	}
}

// Decoded is the relay-relevant content of one message.
type Decoded struct {
	// Sender is the bare address of the first From mailbox, or empty when the
	// header is missing or unparseable.
	Sender string
	Body   string
	Kind   BodyKind
}

// HasPlainText reports whether Body holds real message text rather than
// NoPlainTextBody.
func (d Decoded) HasPlainText() bool {
	return d.Kind != MultipartNoText
}

// DecodingError is returned when a message cannot be parsed or its text is
// not valid UTF-8 after transfer and charset decoding.
type DecodingError struct {
	Err error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("decode message: %v", e.Err)
}

func (e *DecodingError) Unwrap() error {
	return e.Err
}

// IsDecodingError reports whether err (or any error in its chain) is a DecodingError.
func IsDecodingError(err error) bool {
	var decErr *DecodingError
	return errors.As(err, &decErr)
}

var errInvalidUTF8 = errors.New("body is not valid UTF-8")

// Decode parses raw and extracts its sender and text body. Single-part
// messages yield their payload as is; multipart messages yield the first
// inline text/plain part, then the first text/plain attachment, or
// NoPlainTextBody when there is neither.
func Decode(raw []byte) (Decoded, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return Decoded{}, &DecodingError{Err: fmt.Errorf("parse header: %w", err)}
	}
	defer mr.Close()

	decoded := Decoded{Sender: senderAddress(mr.Header)}

	mediaType, _, _ := mr.Header.ContentType()
	if !strings.HasPrefix(mediaType, "multipart/") {
		part, err := mr.NextPart()
		if err != nil {
			return Decoded{}, &DecodingError{Err: fmt.Errorf("read body: %w", err)}
		}
		body, err := readText(part.Body)
		if err != nil {
			return Decoded{}, &DecodingError{Err: err}
		}
		decoded.Kind = SinglePart
		decoded.Body = body
		return decoded, nil
	}

	var attached []byte
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Decoded{}, &DecodingError{Err: fmt.Errorf("read part: %w", err)}
		}

		var contentType string
		inline := false
		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ = h.ContentType()
			if contentType == "" {
				contentType = "text/plain"
			}
			inline = true
		case *mail.AttachmentHeader:
			contentType, _, _ = h.ContentType()
		}
		if contentType != "text/plain" {
			continue
		}
		if !inline {
			if attached == nil {
				data, err := io.ReadAll(part.Body)
				if err != nil {
					return Decoded{}, &DecodingError{Err: fmt.Errorf("read body: %w", err)}
				}
				attached = data
			}
			continue
		}

		body, err := readText(part.Body)
		if err != nil {
			return Decoded{}, &DecodingError{Err: err}
		}
		decoded.Kind = MultipartWithText
		decoded.Body = body
		return decoded, nil
	}

	if attached != nil {
		body, err := readText(bytes.NewReader(attached))
		if err != nil {
			return Decoded{}, &DecodingError{Err: err}
		}
		decoded.Kind = MultipartWithText
		decoded.Body = body
		return decoded, nil
	}

	decoded.Kind = MultipartNoText
	decoded.Body = NoPlainTextBody
	return decoded, nil
}

func senderAddress(header mail.Header) string {
	list, err := header.AddressList("From")
	if err != nil || len(list) == 0 {
		return ""
	}
	return list[0].Address
}

func readText(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if !utf8.Valid(data) {
		return "", errInvalidUTF8
	}
	return string(data), nil
}
