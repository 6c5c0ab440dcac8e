package relay

import "context"

// RawMessage is a full message as stored in the selected mailbox.
type RawMessage struct {
	UID  uint32
	Body []byte
}

// Session is an authenticated mail store connection.
type Session interface {
	Select(mailbox string, readOnly bool) error
	// SearchUnseenFrom returns the UIDs of unseen messages from sender.
	SearchUnseenFrom(sender string) ([]uint32, error)
	// Fetch returns the full content of uids in the order the store sent them.
	// Fetching must not set the \Seen flag.
	Fetch(uids []uint32) ([]RawMessage, error)
	MarkSeen(uid uint32) error
	Logout() error
}

// Dialer opens a Session, connecting and logging in.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Session, error)

func (f DialerFunc) Dial(ctx context.Context) (Session, error) { return f(ctx) }

// Deliverer hands text to the chat channel.
type Deliverer interface {
	Deliver(ctx context.Context, channel, text string) error
}
