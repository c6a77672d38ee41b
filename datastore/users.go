package datastore

import (
	"context"
	"fmt"

	"projectflow/gateway"
	"projectflow/profile"
	"projectflow/storage"
)

// UpdateUserParams carries a partial profile field set; nil pointers leave
// the current value untouched. The role is deliberately absent: roles are
// immutable after creation.
type UpdateUserParams struct {
	Name     *string
	Email    *string
	Phone    *string
	Contract *storage.FileDescriptor
}

// UpdateUser writes the partial field set and merges it into whichever
// cached copy of the profile exists.
func (s *Store) UpdateUser(ctx context.Context, id string, params UpdateUserParams) error {
	patch := gateway.Row{}
	if params.Name != nil {
		patch["name"] = *params.Name
	}
	if params.Email != nil {
		patch["email"] = *params.Email
	}
	if params.Phone != nil {
		patch["phone"] = *params.Phone
	}
	if params.Contract != nil {
		if err := params.Contract.Validate(); err != nil {
			return err
		}
		patch["contract"] = params.Contract
	}
	if len(patch) == 0 {
		return nil
	}

	if err := s.db.Update(ctx, gateway.TableProfiles, id, patch); err != nil {
		return fmt.Errorf("datastore: update user %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	merge := func(u profile.User) profile.User {
		if params.Name != nil {
			u.Name = *params.Name
		}
		if params.Email != nil {
			u.Email = *params.Email
		}
		if params.Phone != nil {
			u.Phone = *params.Phone
		}
		if params.Contract != nil {
			contract := *params.Contract
			u.Contract = &contract
		}
		return u
	}
	if prev, ok := findUser(s.clients, id); ok {
		s.clients = upsertUser(s.clients, merge(prev))
	}
	if prev, ok := findUser(s.admins, id); ok {
		s.admins = upsertUser(s.admins, merge(prev))
	}
	if s.profile != nil && s.profile.ID == id {
		merged := merge(*s.profile)
		s.profile = &merged
	}
	return nil
}

// AddContractToClient uploads the contract blob and attaches its descriptor
// to the client's profile.
func (s *Store) AddContractToClient(ctx context.Context, clientID string, file storage.Upload) error {
	desc, err := s.up.Upload(ctx, file, storage.BucketContracts, storage.ContractPath(clientID, file.Name))
	if err != nil {
		return err
	}
	return s.UpdateUser(ctx, clientID, UpdateUserParams{Contract: &desc})
}

// DeleteUser removes the profile row and drops the cached copy. Deleting
// the identity-provider account is an external privileged operation; the
// caller confirms destructive intent before getting here.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if err := s.db.Delete(ctx, gateway.TableProfiles, gateway.Eq("id", id)); err != nil {
		return fmt.Errorf("datastore: delete user %s: %w", id, err)
	}
	s.mu.Lock()
	s.clients = removeUser(s.clients, id)
	s.admins = removeUser(s.admins, id)
	s.mu.Unlock()
	return nil
}
