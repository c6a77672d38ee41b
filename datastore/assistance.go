package datastore

import (
	"context"
	"fmt"

	"projectflow/assistance"
	"projectflow/gateway"
	"projectflow/storage"
)

// AddAssistanceRequest opens a ticket against one of the caller's own
// projects. The requester identity and display name come from the resolved
// profile; the ticket starts Open with an empty response.
func (s *Store) AddAssistanceRequest(ctx context.Context, projectID, description string, photos []storage.Upload) (assistance.Request, error) {
	prof := s.UserProfile()
	if prof == nil {
		return assistance.Request{}, ErrNoProfile
	}
	target, ok := s.GetProjectByID(projectID)
	if !ok {
		return assistance.Request{}, ErrUnknownProject
	}
	if target.ClientUID != prof.ID {
		return assistance.Request{}, ErrNotProjectOwner
	}

	files, err := s.up.UploadAll(ctx, photos, storage.BucketProjectFiles, func(u storage.Upload) string {
		return storage.AssistancePath(s.up.Now(), prof.ID, u.Name)
	})
	if err != nil {
		return assistance.Request{}, err
	}

	req := assistance.Request{
		ID:          s.newID(),
		CreatedAt:   s.now().UTC(),
		ClientUID:   prof.ID,
		ProjectID:   projectID,
		ClientName:  prof.Name,
		Description: description,
		Status:      assistance.StatusOpen,
		Photos:      files,
		Response:    "",
	}
	if err := req.Validate(); err != nil {
		return assistance.Request{}, err
	}

	if err := s.db.Insert(ctx, gateway.TableAssistance, req.Row()); err != nil {
		return assistance.Request{}, fmt.Errorf("datastore: insert assistance request: %w", err)
	}

	s.mu.Lock()
	s.requests = upsertRequest(s.requests, req)
	s.sortRequestsLocked()
	s.mu.Unlock()
	return req, nil
}

// UpdateAssistanceRequest sets the admin-authored status and response on a
// ticket. Any status may follow any other.
func (s *Store) UpdateAssistanceRequest(ctx context.Context, id string, status assistance.Status, response string) error {
	if !status.Valid() {
		return fmt.Errorf("assistance: invalid status %q", status)
	}

	patch := gateway.Row{"status": string(status), "response": response}
	if err := s.db.Update(ctx, gateway.TableAssistance, id, patch); err != nil {
		return fmt.Errorf("datastore: update assistance request %s: %w", id, err)
	}

	s.mu.Lock()
	for i := range s.requests {
		if s.requests[i].ID == id {
			s.requests[i].Status = status
			s.requests[i].Response = response
			break
		}
	}
	s.mu.Unlock()
	return nil
}
