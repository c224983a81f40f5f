package memstore

import (
	"context"
	"sync"

	"studiobook/backend/internal/domain"
	"studiobook/backend/internal/store"
)

type Repo struct {
	mu   sync.RWMutex
	snap domain.Snapshot
}

func New(seed domain.Snapshot) *Repo {
	return &Repo{snap: seed.Clone()}
}

func (r *Repo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.StudioTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := Apply(ctx, r.snap, fn)
	if err != nil {
		return err
	}
	r.snap = next
	return nil
}

func (r *Repo) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap.Clone(), nil
}
