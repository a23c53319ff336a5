package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/kode4food/courier/internal/trigger"
	"github.com/kode4food/courier/pkg/api"
	"github.com/kode4food/courier/pkg/log"
)

type (
	// Handler receives decoded incoming email events
	Handler interface {
		HandleIncomingEmail(
			context.Context, *api.Email,
		) (*trigger.Dispatch, error)
	}

	// Listener subscribes to a subject and hands each message to a Handler.
	// Requests carrying a reply subject are answered with the dispatch result
	Listener struct {
		ctx     context.Context
		handler Handler
		conn    *nats.Conn
		sub     *nats.Subscription
		publish Publisher
		subject string
		mu      sync.Mutex
	}

	// Option configures a Listener
	Option func(*Listener)

	// Publisher sends a reply payload to a subject
	Publisher func(subject string, data []byte) error
)

var (
	ErrNotStarted   = errors.New("listener not started")
	ErrDecodeEmail  = errors.New("failed to decode email event")
	ErrSubscribe    = errors.New("failed to subscribe")
	ErrNATSConnect  = errors.New("failed to connect to NATS")
	ErrAlreadyBound = errors.New("listener already started")
)

// Connect dials url and returns a Listener for subject. The connection is
// owned by the Listener and closed by Stop
func Connect(url, subject string, h Handler) (*Listener, error) {
	conn, err := nats.Connect(url,
		nats.Name("courier"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNATSConnect, err)
	}
	return New(conn, subject, h), nil
}

// WithPublisher replaces the connection used to answer requests
func WithPublisher(p Publisher) Option {
	return func(l *Listener) {
		l.publish = p
	}
}

// New creates a Listener over an existing connection
func New(
	conn *nats.Conn, subject string, h Handler, opts ...Option,
) *Listener {
	l := &Listener{
		ctx:     context.Background(),
		handler: h,
		conn:    conn,
		subject: subject,
	}
	if conn != nil {
		l.publish = conn.Publish
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start subscribes to the subject. Executions started by messages run under
// ctx
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sub != nil {
		return ErrAlreadyBound
	}

	l.ctx = ctx
	sub, err := l.conn.Subscribe(l.subject, l.HandleMsg)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribe, l.subject, err)
	}
	l.sub = sub
	slog.Info("Inbound mail listener started",
		slog.String("subject", l.subject))
	return nil
}

// Stop drains the subscription and closes the connection
func (l *Listener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sub == nil {
		return ErrNotStarted
	}

	err := l.sub.Drain()
	l.sub = nil
	if l.conn != nil {
		l.conn.Close()
	}
	slog.Info("Inbound mail listener stopped",
		slog.String("subject", l.subject))
	return err
}

// HandleMsg decodes one email event and dispatches it
func (l *Listener) HandleMsg(msg *nats.Msg) {
	var email api.Email
	if err := json.Unmarshal(msg.Data, &email); err != nil {
		err = fmt.Errorf("%w: %w", ErrDecodeEmail, err)
		slog.Warn("Inbound mail rejected",
			slog.String("subject", msg.Subject),
			log.Error(err))
		l.reply(msg, api.ErrorResponse{Error: err.Error()})
		return
	}

	l.mu.Lock()
	ctx := l.ctx
	l.mu.Unlock()

	d, err := l.handler.HandleIncomingEmail(ctx, &email)
	if err != nil {
		slog.Warn("Inbound mail rejected",
			slog.String("email_id", email.ID),
			log.Error(err))
		l.reply(msg, api.ErrorResponse{Error: err.Error()})
		return
	}

	slog.Debug("Inbound mail dispatched",
		slog.String("email_id", email.ID),
		slog.Int("matched", len(d.Matched)))
	l.reply(msg, api.DispatchResponse{
		Matched: d.Matched,
		Count:   len(d.Matched),
	})
}

func (l *Listener) reply(msg *nats.Msg, body any) {
	if msg.Reply == "" || l.publish == nil {
		return
	}
	data, err := json.Marshal(body)
	if err != nil {
		return
	}
	if err := l.publish(msg.Reply, data); err != nil {
		slog.Warn("Inbound mail reply failed",
			slog.String("reply", msg.Reply),
			log.Error(err))
	}
}
