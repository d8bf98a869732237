// Package mail reads the support mailbox that SAP ticket e-mails land in.
package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"jdcportal/internal/domain/user"
)

var ErrMailboxUnavailable = errors.New("mailbox unavailable")

type Message struct {
	ID         string
	From       string
	Subject    string
	Snippet    string
	ReceivedAt time.Time
}

// Mailbox opens a Session; credentials are resolved once per Open.
type Mailbox interface {
	Open(ctx context.Context) (Session, error)
}

type Session interface {
	ListUnread(ctx context.Context, query string, max int64) ([]Message, error)
	MarkRead(ctx context.Context, id string) error
}

type TokenSourceProvider interface {
	TokenSource(ctx context.Context, kind user.ProcessorKind, scopes ...string) (oauth2.TokenSource, error)
}

// GmailMailbox acts on behalf of the profile flagged as Gmail processor.
type GmailMailbox struct {
	creds TokenSourceProvider
	opts  []option.ClientOption
}

// NewGmailMailbox takes extra client options, such as a test endpoint.
func NewGmailMailbox(creds TokenSourceProvider, opts ...option.ClientOption) *GmailMailbox {
	return &GmailMailbox{creds: creds, opts: opts}
}

func (m *GmailMailbox) Open(ctx context.Context) (Session, error) {
	ts, err := m.creds.TokenSource(ctx, user.ProcessorGmail, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMailboxUnavailable, err)
	}
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, m.opts...)
	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMailboxUnavailable, err)
	}
	return &gmailSession{srv: srv}, nil
}

type gmailSession struct {
	srv *gmail.Service
}

func (g *gmailSession) ListUnread(ctx context.Context, query string, max int64) ([]Message, error) {
	srv := g.srv
	list, err := srv.Users.Messages.List("me").Q(query).MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrMailboxUnavailable, err)
	}

	out := make([]Message, 0, len(list.Messages))
	for _, ref := range list.Messages {
		msg, err := srv.Users.Messages.Get("me", ref.Id).
			Format("metadata").
			MetadataHeaders("From", "Subject").
			Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("%w: get %s: %v", ErrMailboxUnavailable, ref.Id, err)
		}
		out = append(out, toMessage(msg))
	}
	return out, nil
}

func (g *gmailSession) MarkRead(ctx context.Context, id string) error {
	_, err := g.srv.Users.Messages.Modify("me", id, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: mark read %s: %v", ErrMailboxUnavailable, id, err)
	}
	return nil
}

func toMessage(msg *gmail.Message) Message {
	out := Message{
		ID:         msg.Id,
		Snippet:    msg.Snippet,
		ReceivedAt: time.UnixMilli(msg.InternalDate).UTC(),
	}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "From":
				out.From = h.Value
			case "Subject":
				out.Subject = h.Value
			}
		}
	}
	return out
}
