package remote

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
)

// ChangeChannel is the Postgres NOTIFY channel fed by the schema triggers.
const ChangeChannel = "notesync_changes"

// Change is one row-level change announced by the backend.
type Change struct {
	Table  string `json:"table"`
	Op     string `json:"op"`
	UserID string `json:"user_id"`
	ID     string `json:"id"`
}

type notifyConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Listener delivers the current user's changes to subscribers. It never
// syncs on its own.
type Listener struct {
	dsn      string
	identity Identity
	log      logging.Logger

	connect func(ctx context.Context, dsn string) (notifyConn, error)
	backoff func() retry.Backoff
}

func NewListener(dsn string, identity Identity, log logging.Logger) *Listener {
	return &Listener{
		dsn:      dsn,
		identity: identity,
		log:      log,
		connect: func(ctx context.Context, dsn string) (notifyConn, error) {
			return pgx.Connect(ctx, dsn)
		},
		backoff: func() retry.Backoff {
			return retry.WithCappedDuration(time.Minute, retry.NewExponential(500*time.Millisecond))
		},
	}
}

// Subscription is an active change subscription.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Unsubscribe stops delivery and waits for the listening goroutine to exit.
// It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// Done is closed once the subscription has stopped.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Subscribe resolves the current user and starts listening. cb is called
// from the listener goroutine, one change at a time.
func (l *Listener) Subscribe(ctx context.Context, cb func(Change)) (*Subscription, error) {
	uid, err := l.identity.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		l.run(ctx, uid, cb)
	}()
	return sub, nil
}

func (l *Listener) run(ctx context.Context, uid string, cb func(Change)) {
	for ctx.Err() == nil {
		var conn notifyConn
		err := retry.Do(ctx, l.backoff(), func(ctx context.Context) error {
			c, err := l.connect(ctx, l.dsn)
			if err != nil {
				l.log.Warn(ctx, "change feed connect failed", "error", err)
				return retry.RetryableError(err)
			}
			if _, err := c.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
				_ = c.Close(context.Background())
				l.log.Warn(ctx, "change feed listen failed", "error", err)
				return retry.RetryableError(err)
			}
			conn = c
			return nil
		})
		if err != nil {
			return
		}

		l.log.Debug(ctx, "change feed connected", "channel", ChangeChannel)
		err = l.receive(ctx, conn, uid, cb)
		_ = conn.Close(context.Background())
		if err != nil && !errors.Is(err, context.Canceled) {
			l.log.Warn(ctx, "change feed lost", "error", err)
		}
	}
}

func (l *Listener) receive(ctx context.Context, conn notifyConn, uid string, cb func(Change)) error {
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var ch Change
		if err := json.Unmarshal([]byte(n.Payload), &ch); err != nil {
			l.log.Warn(ctx, "undecodable change notification", "payload", n.Payload, "error", err)
			continue
		}
		if ch.UserID != uid {
			continue
		}
		cb(ch)
	}
}
