// Package gateway declares the contracts of the managed backend the portal
// core consumes: the auth session source, the relational row store, the
// realtime change feed and the blob store. The core never talks to a concrete
// backend directly; reference implementations live in the postgres, blobdisk
// and session packages.
package gateway

import (
	"context"
	"errors"
	"io"
)

// Table names consumed by the core. They match the remote schema verbatim,
// including the legacy Portuguese profile table.
const (
	TableProfiles   = "clientes"
	TableProjects   = "projects"
	TableAssistance = "assistanceRequests"
)

var (
	// ErrNotFound signals a select or update that matched no row.
	ErrNotFound = errors.New("gateway: row not found")
)

// Row is an untyped record as delivered by the remote store. Domain packages
// are responsible for parsing and validating rows at this boundary.
type Row map[string]any

// Filter restricts a select or delete to rows whose column equals the value.
type Filter struct {
	Column string
	Value  any
}

// Eq builds an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: value}
}

// Relational is the query/write surface of the remote row store.
type Relational interface {
	// Select returns all rows of table matching every filter, newest first
	// by created_at.
	Select(ctx context.Context, table string, filters ...Filter) ([]Row, error)
	// Insert stores one row. The row must carry its id.
	Insert(ctx context.Context, table string, row Row) error
	// Update merges patch into the row with the given id.
	Update(ctx context.Context, table string, id string, patch Row) error
	// Delete removes every row matching the filters.
	Delete(ctx context.Context, table string, filters ...Filter) error
}

// ChangeKind distinguishes realtime change events.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeUpdate ChangeKind = "UPDATE"
	ChangeDelete ChangeKind = "DELETE"
)

// ChangeEvent is one remote mutation pushed over the realtime feed. New is
// set for inserts and updates, Old for updates and deletes. Delivery is
// at-least-once and may be reordered; consumers must apply events
// idempotently.
type ChangeEvent struct {
	Table string
	Kind  ChangeKind
	New   Row
	Old   Row
}

// Subscription is a handle on an active realtime or auth subscription.
type Subscription interface {
	Unsubscribe() error
}

// Realtime delivers remote change events per table. Reconnection and
// transport retries are the implementation's concern, not the consumer's.
type Realtime interface {
	Subscribe(ctx context.Context, table string, fn func(ChangeEvent)) (Subscription, error)
}

// Session identifies an authenticated identity-provider session. ID is the
// provider's subject and doubles as the profile row id.
type Session struct {
	ID    string
	Email string
}

// Auth is the identity-provider session surface. OnChange fires once per
// session transition with the new session, or nil after sign-out.
type Auth interface {
	CurrentSession(ctx context.Context) (*Session, error)
	OnChange(fn func(*Session)) Subscription
	SignOut(ctx context.Context) error
}

// Blobs is the blob storage surface. Upload returns the stored path, which
// doubles as the deletion key.
type Blobs interface {
	Upload(ctx context.Context, bucket, path string, contentType string, r io.Reader) (string, error)
	PublicURL(bucket, path string) string
	Remove(ctx context.Context, bucket string, paths []string) error
}
