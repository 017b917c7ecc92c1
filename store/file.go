package store

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"teambot/entity"
	"teambot/errs"
	"teambot/log"
)

// FileStore keeps the snapshot in a JSON document. Commits write a temporary
// file and rename it over the document, so a failed write leaves the last
// committed state in place.
type FileStore struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
	snap *entity.Snapshot
}

// NewFileStore opens path on fs, creating it with an empty team mapping if it
// is missing or empty.
func NewFileStore(fs afero.Fs, path string) (*FileStore, error) {
	st := &FileStore{fs: fs, path: path}

	b, err := afero.ReadFile(fs, path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: read %s: %v", errs.ErrStoreIO, path, err)
	}
	if len(b) == 0 {
		st.snap = entity.NewSnapshot()
		if err := st.write(st.snap); err != nil {
			return nil, err
		}
		log.Logger.Info("created team store", zap.String("path", path))
		return st, nil
	}

	st.snap, err = decode(b)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (st *FileStore) Read(ctx context.Context) (*entity.Snapshot, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	return st.snap.Clone(), nil
}

func (st *FileStore) Transact(ctx context.Context, fn TxFunc) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	next := st.snap.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := st.write(next); err != nil {
		log.Logger.Error("failed writing team store", zap.String("path", st.path), zap.Error(err))
		return err
	}
	st.snap = next
	return nil
}

func (st *FileStore) Close(context.Context) error {
	return nil
}

func (st *FileStore) write(s *entity.Snapshot) error {
	b, err := encode(s)
	if err != nil {
		return err
	}

	tmp := st.path + ".tmp"
	if err := afero.WriteFile(st.fs, tmp, b, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", errs.ErrStoreIO, tmp, err)
	}
	if err := st.fs.Rename(tmp, st.path); err != nil {
		_ = st.fs.Remove(tmp)
		return fmt.Errorf("%w: rename %s: %v", errs.ErrStoreIO, tmp, err)
	}
	return nil
}
