package datastore

import (
	"context"
	"fmt"

	"projectflow/gateway"
	"projectflow/project"
	"projectflow/storage"
)

// AddProjectParams carries the caller-supplied fields of a new project. The
// id, creation timestamp and file list are assigned by the store.
type AddProjectParams struct {
	Name             string
	Description      string
	ClientUID        string
	Status           project.Status
	Price            float64
	PaymentCondition string
	DeliveryDate     *string
}

// AddProject uploads the photos, inserts the project row and applies it to
// the cache optimistically. The realtime echo later converges on the same
// row by id.
func (s *Store) AddProject(ctx context.Context, params AddProjectParams, photos []storage.Upload) (project.Project, error) {
	files, err := s.up.UploadAll(ctx, photos, storage.BucketProjectFiles, func(u storage.Upload) string {
		return storage.ProjectPath(s.up.Now(), u.Name)
	})
	if err != nil {
		return project.Project{}, err
	}

	p := project.Project{
		ID:               s.newID(),
		Name:             params.Name,
		Description:      params.Description,
		ClientUID:        params.ClientUID,
		Status:           params.Status,
		CreatedAt:        s.now().UTC(),
		Price:            params.Price,
		PaymentCondition: params.PaymentCondition,
		Files:            files,
		DeliveryDate:     params.DeliveryDate,
	}
	if err := p.Validate(); err != nil {
		return project.Project{}, err
	}

	if err := s.db.Insert(ctx, gateway.TableProjects, p.Row()); err != nil {
		return project.Project{}, fmt.Errorf("datastore: insert project: %w", err)
	}

	s.mu.Lock()
	s.projects = upsertProject(s.projects, p)
	s.sortProjectsLocked()
	s.mu.Unlock()
	return p, nil
}

// UpdateProjectParams carries a partial field set; nil pointers leave the
// current value untouched.
type UpdateProjectParams struct {
	Name             *string
	Description      *string
	ClientUID        *string
	Status           *project.Status
	Price            *float64
	PaymentCondition *string
	DeliveryDate     *string
}

// UpdateProject uploads any new photos, merges them with the project's
// existing file list, writes the merged field set and applies it locally.
func (s *Store) UpdateProject(ctx context.Context, id string, params UpdateProjectParams, photos []storage.Upload) (project.Project, error) {
	current, ok := s.GetProjectByID(id)
	if !ok {
		return project.Project{}, ErrUnknownProject
	}

	files, err := s.up.UploadAll(ctx, photos, storage.BucketProjectFiles, func(u storage.Upload) string {
		return storage.ProjectFilePath(s.up.Now(), id, u.Name)
	})
	if err != nil {
		return project.Project{}, err
	}

	merged := current
	if params.Name != nil {
		merged.Name = *params.Name
	}
	if params.Description != nil {
		merged.Description = *params.Description
	}
	if params.ClientUID != nil {
		merged.ClientUID = *params.ClientUID
	}
	if params.Status != nil {
		merged.Status = *params.Status
	}
	if params.Price != nil {
		merged.Price = *params.Price
	}
	if params.PaymentCondition != nil {
		merged.PaymentCondition = *params.PaymentCondition
	}
	if params.DeliveryDate != nil {
		merged.DeliveryDate = params.DeliveryDate
	}
	merged.Files = append(append([]storage.FileDescriptor(nil), current.Files...), files...)
	if err := merged.Validate(); err != nil {
		return project.Project{}, err
	}

	if err := s.db.Update(ctx, gateway.TableProjects, id, merged.Row()); err != nil {
		return project.Project{}, fmt.Errorf("datastore: update project %s: %w", id, err)
	}

	s.mu.Lock()
	s.projects = upsertProject(s.projects, merged)
	s.sortProjectsLocked()
	s.mu.Unlock()
	return merged, nil
}

// DeleteFileFromProject removes one stored file from a project: the row is
// rewritten without the descriptor first, then the blob is removed. A blob
// that outlives a successful row write is recorded for cleanup instead of
// leaving a dangling descriptor.
func (s *Store) DeleteFileFromProject(ctx context.Context, projectID string, file storage.FileDescriptor) error {
	current, ok := s.GetProjectByID(projectID)
	if !ok {
		return ErrUnknownProject
	}

	kept := make([]storage.FileDescriptor, 0, len(current.Files))
	for _, f := range current.Files {
		if f.ID != file.ID {
			kept = append(kept, f)
		}
	}
	updated := current
	updated.Files = kept

	if err := s.db.Update(ctx, gateway.TableProjects, projectID, updated.Row()); err != nil {
		return fmt.Errorf("datastore: detach file %s: %w", file.ID, err)
	}

	s.mu.Lock()
	s.projects = upsertProject(s.projects, updated)
	s.sortProjectsLocked()
	s.mu.Unlock()

	if err := s.up.Remove(ctx, storage.BucketProjectFiles, []string{file.ID}); err != nil {
		s.recordCleanup(CleanupTask{
			Bucket: storage.BucketProjectFiles,
			Paths:  []string{file.ID},
			Cause:  fmt.Sprintf("detached blob not removed: %v", err),
		})
		return fmt.Errorf("datastore: remove blob %s: %w", file.ID, err)
	}
	return nil
}

// DeleteProject removes a project and everything hanging off it: the
// assistance requests first, then the project row, then the stored blobs.
// There is no cross-store transaction; whatever a failed step leaves behind
// is recorded for cleanup.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	current, ok := s.GetProjectByID(id)
	if !ok {
		return ErrUnknownProject
	}

	paths := make([]string, 0, len(current.Files))
	for _, f := range current.Files {
		paths = append(paths, f.ID)
	}

	if err := s.db.Delete(ctx, gateway.TableAssistance, gateway.Eq("projectId", id)); err != nil {
		return fmt.Errorf("datastore: delete assistance for project %s: %w", id, err)
	}

	if err := s.db.Delete(ctx, gateway.TableProjects, gateway.Eq("id", id)); err != nil {
		s.recordCleanup(CleanupTask{
			Table: gateway.TableProjects,
			RowID: id,
			Cause: fmt.Sprintf("children deleted, project row remains: %v", err),
		})
		return fmt.Errorf("datastore: delete project %s: %w", id, err)
	}

	s.mu.Lock()
	s.projects = removeProject(s.projects, id)
	kept := s.requests[:0]
	for _, r := range s.requests {
		if r.ProjectID != id {
			kept = append(kept, r)
		}
	}
	s.requests = kept
	s.mu.Unlock()

	if len(paths) > 0 {
		if err := s.up.Remove(ctx, storage.BucketProjectFiles, paths); err != nil {
			s.recordCleanup(CleanupTask{
				Bucket: storage.BucketProjectFiles,
				Paths:  paths,
				Cause:  fmt.Sprintf("project deleted, blobs remain: %v", err),
			})
			return fmt.Errorf("datastore: remove blobs for project %s: %w", id, err)
		}
	}
	return nil
}
