package datastore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"projectflow/gateway"
)

// fakeDB is an in-memory gateway.Relational with the same newest-first
// select ordering as the real row store.
type fakeDB struct {
	mu         sync.Mutex
	tables     map[string][]gateway.Row
	selectErr  map[string]error
	insertErr  error
	updateErr  error
	deleteErr  map[string]error
	selectGate chan struct{}
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		tables:    make(map[string][]gateway.Row),
		selectErr: make(map[string]error),
		deleteErr: make(map[string]error),
	}
}

// setGate makes every Select block until the gate closes; nil unblocks.
func (f *fakeDB) setGate(gate chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selectGate = gate
}

func (f *fakeDB) seed(table string, rows ...gateway.Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[table] = append(f.tables[table], rows...)
}

func matches(row gateway.Row, filters []gateway.Filter) bool {
	for _, flt := range filters {
		if fmt.Sprint(row[flt.Column]) != fmt.Sprint(flt.Value) {
			return false
		}
	}
	return true
}

func (f *fakeDB) Select(ctx context.Context, table string, filters ...gateway.Filter) ([]gateway.Row, error) {
	f.mu.Lock()
	gate := f.selectGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.selectErr[table]; err != nil {
		return nil, err
	}
	var out []gateway.Row
	for _, row := range f.tables[table] {
		if matches(row, filters) {
			out = append(out, row)
		}
	}
	// created_at is RFC3339, so lexical order is chronological.
	sort.SliceStable(out, func(i, j int) bool {
		return fmt.Sprint(out[i]["created_at"]) > fmt.Sprint(out[j]["created_at"])
	})
	return out, nil
}

func (f *fakeDB) Insert(ctx context.Context, table string, row gateway.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.tables[table] = append(f.tables[table], row)
	return nil
}

func (f *fakeDB) Update(ctx context.Context, table string, id string, patch gateway.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	for _, row := range f.tables[table] {
		if fmt.Sprint(row["id"]) == id {
			for k, v := range patch {
				row[k] = v
			}
			return nil
		}
	}
	return gateway.ErrNotFound
}

func (f *fakeDB) Delete(ctx context.Context, table string, filters ...gateway.Filter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErr[table]; err != nil {
		return err
	}
	kept := f.tables[table][:0]
	for _, row := range f.tables[table] {
		if !matches(row, filters) {
			kept = append(kept, row)
		}
	}
	f.tables[table] = kept
	return nil
}

func (f *fakeDB) count(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[table])
}

// fakeRealtime records subscriptions and lets tests push events.
type fakeRealtime struct {
	mu   sync.Mutex
	subs map[string][]func(gateway.ChangeEvent)
}

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{subs: make(map[string][]func(gateway.ChangeEvent))}
}

func (f *fakeRealtime) Subscribe(ctx context.Context, table string, fn func(gateway.ChangeEvent)) (gateway.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[table] = append(f.subs[table], fn)
	return nopSubscription{}, nil
}

func (f *fakeRealtime) emit(ev gateway.ChangeEvent) {
	f.mu.Lock()
	fns := append(([]func(gateway.ChangeEvent))(nil), f.subs[ev.Table]...)
	f.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (f *fakeRealtime) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, fns := range f.subs {
		n += len(fns)
	}
	return n
}

type nopSubscription struct{}

func (nopSubscription) Unsubscribe() error { return nil }

// fakeAuth is a minimal gateway.Auth that records forced sign-outs.
type fakeAuth struct {
	mu        sync.Mutex
	sess      *gateway.Session
	fns       []func(*gateway.Session)
	signedOut bool
}

func (f *fakeAuth) CurrentSession(ctx context.Context) (*gateway.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sess == nil {
		return nil, nil
	}
	copied := *f.sess
	return &copied, nil
}

func (f *fakeAuth) OnChange(fn func(*gateway.Session)) gateway.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fns = append(f.fns, fn)
	return nopSubscription{}
}

func (f *fakeAuth) SignOut(ctx context.Context) error {
	f.setSession(nil)
	f.mu.Lock()
	f.signedOut = true
	f.mu.Unlock()
	return nil
}

func (f *fakeAuth) setSession(sess *gateway.Session) {
	f.mu.Lock()
	f.sess = sess
	fns := append(([]func(*gateway.Session))(nil), f.fns...)
	f.mu.Unlock()
	for _, fn := range fns {
		fn(sess)
	}
}

func (f *fakeAuth) wasSignedOut() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signedOut
}

// fakeBlobs is an in-memory gateway.Blobs.
type fakeBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	removeErr error
	uploadErr error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func blobKey(bucket, path string) string { return bucket + "/" + path }

func (f *fakeBlobs) Upload(ctx context.Context, bucket, path string, contentType string, r io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return "", err
	}
	f.objects[blobKey(bucket, path)] = buf.Bytes()
	return path, nil
}

func (f *fakeBlobs) PublicURL(bucket, path string) string {
	return "https://files.test/" + bucket + "/" + path
}

func (f *fakeBlobs) Remove(ctx context.Context, bucket string, paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	for _, p := range paths {
		delete(f.objects, blobKey(bucket, p))
	}
	return nil
}

func (f *fakeBlobs) put(bucket, path string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[blobKey(bucket, path)] = data
}

func (f *fakeBlobs) stored(bucket, path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[blobKey(bucket, path)]
	return ok
}
