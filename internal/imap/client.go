package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"mailrelay/internal/config"
	"mailrelay/internal/relay"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
)

// Client is the subset of the go-imap client the relay drives.
type Client interface {
	State() imap.ConnState
	Login(username, password string) error
	Logout() error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
}

// Dialer opens authenticated sessions against the configured mail server.
type Dialer struct {
	Mail config.MailConfig
	// Timeout bounds the TCP/TLS handshake and every command round-trip.
	Timeout time.Duration
	// Connector is replaced in tests.
	Connector func(ctx context.Context, cfg config.MailConfig, timeout time.Duration) (Client, error)
}

// NewDialer returns a Dialer using Connect.
func NewDialer(cfg config.MailConfig, timeout time.Duration) *Dialer {
	return &Dialer{Mail: cfg, Timeout: timeout, Connector: Connect}
}

// Dial connects and logs in. Login failures are reported as
// *relay.AuthError, everything before that as *relay.ConnectionError.
func (d *Dialer) Dial(ctx context.Context) (relay.Session, error) {
	connector := d.Connector
	if connector == nil {
		connector = Connect
	}
	client, err := connector(ctx, d.Mail, d.Timeout)
	if err != nil {
		return nil, err
	}

	if err := client.Login(d.Mail.Username, d.Mail.Password); err != nil {
		_ = client.Logout()
		return nil, &relay.AuthError{User: d.Mail.Username, Err: err}
	}

	return NewSession(client), nil
}

// Connect dials the server, negotiating implicit TLS or STARTTLS as
// configured. The returned client is not logged in yet.
func Connect(ctx context.Context, cfg config.MailConfig, timeout time.Duration) (Client, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	tlsConfig := &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in for self-signed servers
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &relay.ConnectionError{Op: "dial", Err: err}
	}

	// The client's Timeout only covers commands; the handshake and the
	// greeting are bounded by a connection deadline.
	if deadline, ok := handshakeDeadline(ctx, timeout); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, &relay.ConnectionError{Op: "dial", Err: err}
		}
	}

	if cfg.TLS {
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, &relay.ConnectionError{Op: "tls handshake", Err: err}
		}
		conn = tlsConn
	}

	c, err := imapclient.New(conn)
	if err != nil {
		_ = conn.Close()
		return nil, &relay.ConnectionError{Op: "greeting", Err: fmt.Errorf("%s: %w", addr, err)}
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		_ = c.Logout()
		return nil, &relay.ConnectionError{Op: "greeting", Err: err}
	}
	c.Timeout = timeout

	if !cfg.TLS && cfg.StartTLS {
		if err := c.StartTLS(tlsConfig); err != nil {
			_ = c.Logout()
			return nil, &relay.ConnectionError{Op: "starttls", Err: err}
		}
	}

	return c, nil
}

// handshakeDeadline is the earlier of now+timeout and the deadline of ctx.
func handshakeDeadline(ctx context.Context, timeout time.Duration) (time.Time, bool) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (deadline.IsZero() || ctxDeadline.Before(deadline)) {
		deadline = ctxDeadline
	}
	return deadline, !deadline.IsZero()
}
