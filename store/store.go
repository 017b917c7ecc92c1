package store

import (
	"context"
	"encoding/json"
	"fmt"

	"teambot/entity"
	"teambot/errs"
)

// TxFunc mutates a private copy of the snapshot. A non-nil error rejects the
// transaction and is returned to the caller unchanged.
type TxFunc func(s *entity.Snapshot) error

// Store is the single source of truth for team membership. Implementations
// serialize Transact calls so that invariants checked inside fn hold on commit.
type Store interface {
	// Read returns a copy the caller may keep.
	Read(ctx context.Context) (*entity.Snapshot, error)
	Transact(ctx context.Context, fn TxFunc) error
	Close(ctx context.Context) error
}

func encode(s *entity.Snapshot) ([]byte, error) {
	b, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode snapshot: %v", errs.ErrStoreIO, err)
	}
	return b, nil
}

func decode(b []byte) (*entity.Snapshot, error) {
	s := entity.NewSnapshot()
	if len(b) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", errs.ErrStoreIO, err)
	}
	if s.Teams == nil {
		s.Teams = map[string]*entity.Team{}
	}
	for name, t := range s.Teams {
		if t == nil {
			return nil, fmt.Errorf("%w: team %q is null", errs.ErrStoreIO, name)
		}
		normalize(t)
	}
	return s, nil
}

// normalize fills fields that older documents may omit.
func normalize(t *entity.Team) {
	if t.MaxMembers <= 0 {
		t.MaxMembers = entity.DefaultMaxMembers
	}
}
