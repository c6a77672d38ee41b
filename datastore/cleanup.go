package datastore

import "time"

// CleanupTask records remote state a partially failed multi-step mutation
// left behind. Deletes are not transactional across the row store and the
// blob store, so instead of silently leaking orphans the store keeps a
// ledger an operator (or a future sweep) can act on.
type CleanupTask struct {
	Table    string
	RowID    string
	Bucket   string
	Paths    []string
	Cause    string
	Recorded time.Time
}

func (s *Store) recordCleanup(task CleanupTask) {
	task.Recorded = s.now().UTC()
	s.mu.Lock()
	s.cleanup = append(s.cleanup, task)
	s.mu.Unlock()
}

// PendingCleanup returns a snapshot of the recorded cleanup tasks.
func (s *Store) PendingCleanup() []CleanupTask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]CleanupTask(nil), s.cleanup...)
}
