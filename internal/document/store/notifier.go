package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"regflow/internal/document/models"
	"regflow/pkg/platform/sentinel"
)

const changeChannel = "registration_document_changes"

// Notifier fans PostgreSQL change notifications out to per-record listeners.
// Each notification carries only the record ID; the notifier re-reads the row
// and delivers the fresh snapshot.
type Notifier struct {
	store    *PostgresStore
	listener *pq.Listener
	logger   *slog.Logger

	mu      sync.Mutex
	subs    map[models.ID]map[uint64]models.Listener
	nextSub uint64
}

// Listen opens a dedicated LISTEN connection for dsn and attaches the notifier
// to the store. Call Run to start delivery.
func (s *PostgresStore) Listen(dsn string, logger *slog.Logger) (*Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{
		store:  s,
		logger: logger,
		subs:   make(map[models.ID]map[uint64]models.Listener),
	}
	n.listener = pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("document change listener event", "event", int(ev), "error", err)
		}
	})
	if err := n.listener.Listen(changeChannel); err != nil {
		_ = n.listener.Close()
		return nil, fmt.Errorf("listen %s: %w", changeChannel, err)
	}
	s.notifier = n
	return n, nil
}

// Run delivers notifications until ctx is done.
func (n *Notifier) Run(ctx context.Context) error {
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return n.listener.Close()
		case note := <-n.listener.Notify:
			if note == nil {
				// Reconnected: notifications may have been missed.
				n.refreshAll(ctx)
				continue
			}
			n.dispatch(ctx, models.ID(note.Extra))
		case <-ping.C:
			if err := n.listener.Ping(); err != nil {
				n.logger.WarnContext(ctx, "document change listener ping failed", "error", err)
			}
		}
	}
}

func (n *Notifier) add(id models.ID, fn models.Listener) models.CancelFunc {
	n.mu.Lock()
	n.nextSub++
	key := n.nextSub
	if n.subs[id] == nil {
		n.subs[id] = make(map[uint64]models.Listener)
	}
	n.subs[id][key] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs[id], key)
			if len(n.subs[id]) == 0 {
				delete(n.subs, id)
			}
		})
	}
}

func (n *Notifier) listeners(id models.ID) []models.Listener {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.Listener, 0, len(n.subs[id]))
	for _, fn := range n.subs[id] {
		out = append(out, fn)
	}
	return out
}

func (n *Notifier) dispatch(ctx context.Context, id models.ID) {
	listeners := n.listeners(id)
	if len(listeners) == 0 {
		return
	}
	rec, err := n.store.Get(ctx, id)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		n.logger.WarnContext(ctx, "reload changed document failed", "document_id", id, "error", err)
		return
	}
	for _, fn := range listeners {
		if err != nil {
			fn(nil, sentinel.ErrNotFound)
			continue
		}
		fn(rec.Clone(), nil)
	}
}

func (n *Notifier) refreshAll(ctx context.Context) {
	n.mu.Lock()
	ids := make([]models.ID, 0, len(n.subs))
	for id := range n.subs {
		ids = append(ids, id)
	}
	n.mu.Unlock()
	for _, id := range ids {
		n.dispatch(ctx, id)
	}
}
