// Package assistance models post-delivery support tickets raised by clients
// against their own projects.
package assistance

import (
	"encoding/json"
	"fmt"
	"time"

	"projectflow/gateway"
	"projectflow/storage"
)

// Status tracks a ticket through its admin-driven lifecycle. Transitions are
// admin-only and unconstrained. Wire values are the Portuguese labels.
type Status string

const (
	StatusOpen       Status = "Aberto"
	StatusInProgress Status = "Em Andamento"
	StatusClosed     Status = "Fechado"
)

// Valid reports whether the status is one of the three known states.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed:
		return true
	default:
		return false
	}
}

// Request mirrors a row of the assistanceRequests table. ClientName is a
// denormalized snapshot taken when the ticket is created.
type Request struct {
	ID          string                   `json:"id"`
	CreatedAt   time.Time                `json:"created_at"`
	ClientUID   string                   `json:"clientUid"`
	ProjectID   string                   `json:"projectId"`
	ClientName  string                   `json:"clientName"`
	Description string                   `json:"description"`
	Status      Status                   `json:"status"`
	Photos      []storage.FileDescriptor `json:"photos,omitempty"`
	Response    string                   `json:"response"`
}

// Validate checks the invariants every ticket must satisfy.
func (r Request) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("assistance: missing id")
	}
	if r.ProjectID == "" {
		return fmt.Errorf("assistance: missing project id")
	}
	if r.ClientUID == "" {
		return fmt.Errorf("assistance: missing client id")
	}
	if !r.Status.Valid() {
		return fmt.Errorf("assistance: invalid status %q", r.Status)
	}
	for _, p := range r.Photos {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("assistance: photo: %w", err)
		}
	}
	return nil
}

// FromRow parses and validates an untyped gateway row into a Request.
func FromRow(row gateway.Row) (Request, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return Request{}, fmt.Errorf("assistance: encode row: %w", err)
	}
	var r Request
	if err := json.Unmarshal(raw, &r); err != nil {
		return Request{}, fmt.Errorf("assistance: decode row: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Request{}, err
	}
	return r, nil
}

// Row converts the ticket back into the gateway's untyped shape.
func (r Request) Row() gateway.Row {
	raw, _ := json.Marshal(r)
	var row gateway.Row
	_ = json.Unmarshal(raw, &row)
	return row
}
