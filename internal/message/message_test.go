package message

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestDecode_SinglePart(t *testing.T) {
	raw := crlf(`From: Alice Example <alice@example.com>
To: relay@example.com
Subject: hi
Content-Type: text/plain; charset=utf-8

hello`)

	decoded, err := Decode(raw)

	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", decoded.Sender)
	assert.Equal(t, "hello", decoded.Body)
	assert.Equal(t, SinglePart, decoded.Kind)
	assert.True(t, decoded.HasPlainText())
}

func TestDecode_SinglePartWithoutContentType(t *testing.T) {
	raw := crlf(`From: bob@example.com
Subject: bare

just text`)

	decoded, err := Decode(raw)

	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", decoded.Sender)
	assert.Equal(t, "just text", decoded.Body)
	assert.Equal(t, SinglePart, decoded.Kind)
}

func TestDecode_QuotedPrintable(t *testing.T) {
	raw := crlf(`From: alice@example.com
Content-Type: text/plain; charset=utf-8
Content-Transfer-Encoding: quoted-printable

caf=C3=A9 au lait`)

	decoded, err := Decode(raw)

	require.NoError(t, err)
	assert.Equal(t, "café au lait", decoded.Body)
}

func TestDecode_Latin1Charset(t *testing.T) {
	raw := []byte("From: alice@example.com\r\n" +
		"Content-Type: text/plain; charset=iso-8859-1\r\n" +
		"\r\n" +
		"caf\xe9")

	decoded, err := Decode(raw)

	require.NoError(t, err)
	assert.Equal(t, "café", decoded.Body)
}

func TestDecode_MultipartAlternative(t *testing.T) {
	raw := crlf(`From: "Alice" <alice@example.com>
Subject: alt
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/html; charset=utf-8

<p>html body</p>
--b1
Content-Type: text/plain; charset=utf-8

plain body
--b1--
`)

	decoded, err := Decode(raw)

	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", decoded.Sender)
	assert.Equal(t, "plain body", decoded.Body)
	assert.Equal(t, MultipartWithText, decoded.Kind)
}

func TestDecode_NestedMultipartPicksFirstPlainText(t *testing.T) {
	raw := crlf(`From: alice@example.com
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=utf-8

first
--inner
Content-Type: text/html; charset=utf-8

<b>first</b>
--inner--
--outer
Content-Type: text/plain; charset=utf-8

second
--outer--
`)

	decoded, err := Decode(raw)

	require.NoError(t, err)
	assert.Equal(t, "first", decoded.Body)
	assert.Equal(t, MultipartWithText, decoded.Kind)
}

func TestDecode_MultipartWithoutPlainText(t *testing.T) {
	raw := crlf(`From: alice@example.com
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/html; charset=utf-8

<p>only html</p>
--b1--
`)

	decoded, err := Decode(raw)

	require.NoError(t, err)
	assert.Equal(t, NoPlainTextBody, decoded.Body)
	assert.Equal(t, MultipartNoText, decoded.Kind)
	assert.False(t, decoded.HasPlainText())
}

func TestDecode_PlainTextAttachmentIsFallback(t *testing.T) {
	raw := crlf(`From: alice@example.com
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="b1"

--b1
Content-Type: text/html; charset=utf-8

<p>html</p>
--b1
Content-Type: text/plain; name="notes.txt"
Content-Disposition: attachment; filename="notes.txt"

attached notes
--b1--
`)

	decoded, err := Decode(raw)

	require.NoError(t, err)
	assert.Equal(t, MultipartWithText, decoded.Kind)
	assert.Equal(t, "attached notes", strings.TrimSpace(decoded.Body))
}

func TestDecode_InlinePlainTextWinsOverAttachment(t *testing.T) {
	raw := crlf(`From: alice@example.com
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="b1"

--b1
Content-Type: text/plain; name="notes.txt"
Content-Disposition: attachment; filename="notes.txt"

attached notes
--b1
Content-Type: text/plain; charset=utf-8

inline text
--b1--
`)

	decoded, err := Decode(raw)

	require.NoError(t, err)
	assert.Equal(t, MultipartWithText, decoded.Kind)
	assert.Equal(t, "inline text", strings.TrimSpace(decoded.Body))
}

func TestDecode_InvalidUTF8(t *testing.T) {
	raw := []byte("From: alice@example.com\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"bad \xff\xfe bytes")

	_, err := Decode(raw)

	require.Error(t, err)
	assert.True(t, IsDecodingError(err))
}

func TestDecode_MissingFrom(t *testing.T) {
	raw := crlf(`Subject: anonymous
Content-Type: text/plain

body`)

	decoded, err := Decode(raw)

	require.NoError(t, err)
	assert.Empty(t, decoded.Sender)
	assert.Equal(t, "body", decoded.Body)
}

func TestBodyKindString(t *testing.T) {
	assert.Equal(t, "single-part", SinglePart.String())
	assert.Equal(t, "multipart-no-text", MultipartNoText.String())
	assert.Equal(t, "BodyKind(9)", BodyKind(9).String())
}
