package repositories

import (
	"context"
	"sync"

	"rolegate/internal/models"
)

// MemoryRecordRepository keeps records in a map. Test routers and pipelines use it in place of postgres.
type MemoryRecordRepository struct {
	mu      sync.RWMutex
	records map[string]models.VerificationRecord
}

func NewMemoryRecordRepository() *MemoryRecordRepository {
	return &MemoryRecordRepository{records: make(map[string]models.VerificationRecord)}
}

func (r *MemoryRecordRepository) Upsert(_ context.Context, rec *models.VerificationRecord) error {
	cp := *rec
	if rec.Email != nil {
		e := *rec.Email
		cp.Email = &e
	}
	r.mu.Lock()
	r.records[rec.UserID] = cp
	r.mu.Unlock()
	return nil
}

func (r *MemoryRecordRepository) GetByUserID(_ context.Context, userID string) (*models.VerificationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[userID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *MemoryRecordRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
