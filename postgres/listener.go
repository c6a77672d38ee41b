package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"projectflow/gateway"
)

// notifyChannel is the single NOTIFY channel all portal triggers publish on.
// Payloads carry the logical table name, so one listening connection serves
// every subscription.
const notifyChannel = "portal_changes"

// Listener implements gateway.Realtime on LISTEN/NOTIFY. Run must be active
// for events to flow; Subscribe merely registers interest.
type Listener struct {
	pool *pgxpool.Pool

	mu     sync.Mutex
	subs   map[string]map[int]func(gateway.ChangeEvent)
	nextID int
}

// NewListener builds a Listener over the given pool.
func NewListener(pool *pgxpool.Pool) *Listener {
	return &Listener{
		pool: pool,
		subs: make(map[string]map[int]func(gateway.ChangeEvent)),
	}
}

// Subscribe registers a callback for change events on the logical table.
func (l *Listener) Subscribe(ctx context.Context, table string, fn func(gateway.ChangeEvent)) (gateway.Subscription, error) {
	if _, err := sqlTable(table); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.subs[table] == nil {
		l.subs[table] = make(map[int]func(gateway.ChangeEvent))
	}
	id := l.nextID
	l.nextID++
	l.subs[table][id] = fn
	return &listenerSubscription{listener: l, table: table, id: id}, nil
}

// Run holds a dedicated connection on the notify channel and dispatches
// incoming payloads until the context is cancelled. Reconnection policy is
// the caller's: restart Run after it returns an error.
func (l *Listener) Run(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("postgres: acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("postgres: listen %s: %w", notifyChannel, err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("postgres: wait for notification: %w", err)
		}
		l.dispatch(n.Payload)
	}
}

// notifyPayload mirrors the json built by the portal_notify_change trigger.
type notifyPayload struct {
	Table string      `json:"table"`
	Kind  string      `json:"kind"`
	New   gateway.Row `json:"new"`
	Old   gateway.Row `json:"old"`
}

func (l *Listener) dispatch(payload string) {
	var p notifyPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return
	}

	ev := gateway.ChangeEvent{
		Table: p.Table,
		Kind:  gateway.ChangeKind(p.Kind),
		New:   p.New,
		Old:   p.Old,
	}

	l.mu.Lock()
	fns := make([]func(gateway.ChangeEvent), 0, len(l.subs[p.Table]))
	for _, fn := range l.subs[p.Table] {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

type listenerSubscription struct {
	listener *Listener
	table    string
	id       int
}

func (s *listenerSubscription) Unsubscribe() error {
	s.listener.mu.Lock()
	delete(s.listener.subs[s.table], s.id)
	s.listener.mu.Unlock()
	return nil
}
