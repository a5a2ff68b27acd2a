package applications

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]map[string]Application // ownerId -> id -> application
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string]map[string]Application),
	}
}

// Create stores a new application.
func (r *MemoryRepo) Create(ctx context.Context, app Application) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	owned, ok := r.data[app.OwnerID]
	if !ok {
		owned = make(map[string]Application)
		r.data[app.OwnerID] = owned
	}
	owned[app.ID] = app.clone()
	return nil
}

// GetByID returns an application owned by ownerID.
func (r *MemoryRepo) GetByID(ctx context.Context, ownerID, id string) (Application, error) {
	if err := ctx.Err(); err != nil {
		return Application{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.data[ownerID][id]
	if !ok {
		return Application{}, ErrNotFound
	}
	return app.clone(), nil
}

// ListByOwner returns the owner's applications filtered and ordered per opts.
func (r *MemoryRepo) ListByOwner(ctx context.Context, ownerID string, opts ListOptions) ([]Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.normalized()

	r.mu.RLock()
	out := make([]Application, 0, len(r.data[ownerID]))
	for _, app := range r.data[ownerID] {
		if opts.Status != "" && app.CurrentStatus != opts.Status {
			continue
		}
		out = append(out, app.clone())
	}
	r.mu.RUnlock()

	sortApplications(out, opts.SortField, opts.Ascending)

	if opts.Offset >= len(out) {
		return []Application{}, nil
	}
	end := len(out)
	if opts.Offset+opts.Limit < end {
		end = opts.Offset + opts.Limit
	}
	return out[opts.Offset:end], nil
}

// Update applies fn under the write lock so concurrent updates to the same
// record serialize.
func (r *MemoryRepo) Update(ctx context.Context, ownerID, id string, fn MutateFunc) (Application, error) {
	if err := ctx.Err(); err != nil {
		return Application{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.data[ownerID][id]
	if !ok {
		return Application{}, ErrNotFound
	}
	working := current.clone()
	if err := fn(&working); err != nil {
		return Application{}, err
	}
	r.data[ownerID][id] = working.clone()
	return working, nil
}

// Delete removes an application owned by ownerID.
func (r *MemoryRepo) Delete(ctx context.Context, ownerID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[ownerID][id]; !ok {
		return ErrNotFound
	}
	delete(r.data[ownerID], id)
	return nil
}

// CountByStatus tallies the owner's applications by current status.
func (r *MemoryRepo) CountByStatus(ctx context.Context, ownerID string) (StatusCounts, error) {
	if err := ctx.Err(); err != nil {
		return StatusCounts{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := StatusCounts{ByStatus: make(map[Status]int)}
	for _, app := range r.data[ownerID] {
		counts.Total++
		counts.ByStatus[app.CurrentStatus]++
	}
	return counts, nil
}

var _ Repo = (*MemoryRepo)(nil)
