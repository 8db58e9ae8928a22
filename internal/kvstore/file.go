package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/dharter89/GAAP/internal/fileutil"
)

const lockRetryDelay = 25 * time.Millisecond

// FileStore keeps the document as an indented JSON file. A sibling ".lock"
// file serializes writers across processes; the file itself is replaced
// atomically.
type FileStore struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewFile returns a store for path. The file and its directory are created on
// first save.
func NewFile(path string) *FileStore {
	return &FileStore{path: path, lock: flock.New(path + ".lock")}
}

func (s *FileStore) Location() string { return s.path }

func (s *FileStore) Load(ctx context.Context) (Document, error) {
	if err := s.acquire(ctx, false); err != nil {
		return nil, err
	}
	defer s.release()
	return s.read()
}

func (s *FileStore) Save(ctx context.Context, doc Document) error {
	if err := s.acquire(ctx, true); err != nil {
		return err
	}
	defer s.release()
	return s.write(doc)
}

func (s *FileStore) Update(ctx context.Context, fn func(Document) error) error {
	if err := s.acquire(ctx, true); err != nil {
		return err
	}
	defer s.release()
	doc, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.write(doc)
}

// acquire takes the in-process mutex and then the file lock; a flock.Flock
// reports success for goroutines sharing it, so the mutex is required.
func (s *FileStore) acquire(ctx context.Context, exclusive bool) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return persistErr("create directory", s.path, err)
	}
	s.mu.Lock()
	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = s.lock.TryLockContext(ctx, lockRetryDelay)
	} else {
		ok, err = s.lock.TryRLockContext(ctx, lockRetryDelay)
	}
	if err == nil && !ok {
		err = errors.New("lock not acquired")
	}
	if err != nil {
		s.mu.Unlock()
		return persistErr("acquire lock", s.path, err)
	}
	return nil
}

func (s *FileStore) release() {
	_ = s.lock.Unlock()
	s.mu.Unlock()
}

func (s *FileStore) read() (Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, nil
		}
		return nil, persistErr("read", s.path, err)
	}
	doc := Document{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, persistErr("parse", s.path, err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

func (s *FileStore) write(doc Document) error {
	if doc == nil {
		doc = Document{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return persistErr("marshal", s.path, err)
	}
	data = append(data, '\n')

	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return persistErr("write", s.path, err)
	}
	return nil
}
