// Package memory provides in-process implementations of the storage
// interfaces. They honor the same versioned-update contract as the
// Postgres repositories and back the service in tests and single-node
// development.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banking/compliance-service/internal/domain"
	"github.com/banking/compliance-service/internal/pkg/errs"
)

// FilingRepo is an in-memory filing store with optimistic concurrency
type FilingRepo struct {
	mu      sync.Mutex
	filings map[uuid.UUID]*domain.RegulatoryFiling
}

// NewFilingRepo creates an empty filing store
func NewFilingRepo() *FilingRepo {
	return &FilingRepo{filings: make(map[uuid.UUID]*domain.RegulatoryFiling)}
}

func (r *FilingRepo) Create(_ context.Context, f *domain.RegulatoryFiling) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.filings[f.ID]; exists {
		return errs.Data("memory.FilingRepo.Create", fmt.Errorf("filing %s already exists", f.ID))
	}
	f.Version = 1
	cp := *f
	r.filings[f.ID] = &cp
	return nil
}

func (r *FilingRepo) Get(_ context.Context, id uuid.UUID) (*domain.RegulatoryFiling, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.filings[id]
	if !ok {
		return nil, errs.Data("memory.FilingRepo.Get", fmt.Errorf("filing %s not found", id))
	}
	cp := *f
	return &cp, nil
}

// Update applies a compare-and-swap on Version
func (r *FilingRepo) Update(_ context.Context, f *domain.RegulatoryFiling) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.filings[f.ID]
	if !ok {
		return errs.Data("memory.FilingRepo.Update", fmt.Errorf("filing %s not found", f.ID))
	}
	if cur.Version != f.Version {
		return errs.Conflict("memory.FilingRepo.Update",
			fmt.Errorf("filing %s version %d, expected %d", f.ID, cur.Version, f.Version))
	}
	f.Version++
	cp := *f
	r.filings[f.ID] = &cp
	return nil
}

func (r *FilingRepo) ListActive(_ context.Context) ([]*domain.RegulatoryFiling, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.RegulatoryFiling
	for _, f := range r.filings {
		if !f.IsTerminal() {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *FilingRepo) ListScheduledBefore(_ context.Context, cutoff time.Time) ([]*domain.RegulatoryFiling, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.RegulatoryFiling
	for _, f := range r.filings {
		if f.Status == domain.FilingStatusScheduled && f.ScheduledFor != nil && !f.ScheduledFor.After(cutoff) {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *FilingRepo) CountByStatus(_ context.Context, since time.Time) (map[domain.FilingStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[domain.FilingStatus]int)
	for _, f := range r.filings {
		if f.CreatedAt.Before(since) {
			continue
		}
		counts[f.Status]++
	}
	return counts, nil
}

func (r *FilingRepo) CountFiledOnTime(_ context.Context, since time.Time) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	onTime, total := 0, 0
	for _, f := range r.filings {
		if f.Deadline.Before(since) {
			continue
		}
		total++
		if f.Status == domain.FilingStatusFiled && f.FiledAt != nil && !f.FiledAt.After(f.Deadline) {
			onTime++
		}
	}
	return onTime, total, nil
}

// QueueRepo is an in-memory manual filing queue store
type QueueRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.ManualFilingQueueItem
}

// NewQueueRepo creates an empty queue store
func NewQueueRepo() *QueueRepo {
	return &QueueRepo{items: make(map[uuid.UUID]*domain.ManualFilingQueueItem)}
}

func (r *QueueRepo) Create(_ context.Context, item *domain.ManualFilingQueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[item.ID]; exists {
		return errs.Data("memory.QueueRepo.Create", fmt.Errorf("item %s already exists", item.ID))
	}
	item.Version = 1
	cp := *item
	r.items[item.ID] = &cp
	return nil
}

func (r *QueueRepo) Get(_ context.Context, id uuid.UUID) (*domain.ManualFilingQueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, errs.Data("memory.QueueRepo.Get", fmt.Errorf("item %s not found", id))
	}
	cp := *item
	return &cp, nil
}

func (r *QueueRepo) Update(_ context.Context, item *domain.ManualFilingQueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[item.ID]
	if !ok {
		return errs.Data("memory.QueueRepo.Update", fmt.Errorf("item %s not found", item.ID))
	}
	if cur.Version != item.Version {
		return errs.Conflict("memory.QueueRepo.Update",
			fmt.Errorf("item %s version %d, expected %d", item.ID, cur.Version, item.Version))
	}
	item.Version++
	cp := *item
	r.items[item.ID] = &cp
	return nil
}

func (r *QueueRepo) ListOpen(_ context.Context) ([]*domain.ManualFilingQueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ManualFilingQueueItem
	for _, item := range r.items {
		if !item.IsTerminal() {
			cp := *item
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ListByFiling returns all items, open or not, for a filing
func (r *QueueRepo) ListByFiling(_ context.Context, filingID uuid.UUID) ([]*domain.ManualFilingQueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ManualFilingQueueItem
	for _, item := range r.items {
		if item.FilingID == filingID {
			cp := *item
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ProfileRepo is an in-memory user risk profile store
type ProfileRepo struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*domain.UserRiskProfile
}

// NewProfileRepo creates an empty profile store
func NewProfileRepo() *ProfileRepo {
	return &ProfileRepo{profiles: make(map[uuid.UUID]*domain.UserRiskProfile)}
}

func (r *ProfileRepo) Put(profile *domain.UserRiskProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *profile
	r.profiles[profile.UserID] = &cp
}

// GetByUserID returns the stored profile, or an empty baseline for a
// user never seen before. A missing profile is a cold start, not an
// error.
func (r *ProfileRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*domain.UserRiskProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	profile, ok := r.profiles[userID]
	if !ok {
		return &domain.UserRiskProfile{UserID: userID}, nil
	}
	cp := *profile
	return &cp, nil
}
