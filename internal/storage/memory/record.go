package memory

import (
	"context"
	"sync"

	"github.com/ipetrenko/tokensvc/internal/models"
	"github.com/ipetrenko/tokensvc/internal/storage"
)

// InMemoryRecordManager keeps refresh records in a map guarded by a mutex.
// The mutex also serializes CompareAndMarkUsed, giving the same
// exactly-one-winner guarantee as the SQL implementation.
type InMemoryRecordManager struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]models.RefreshRecord
	byToken map[string]int64
}

func NewRecordRepository() *InMemoryRecordManager {
	return &InMemoryRecordManager{
		records: make(map[int64]models.RefreshRecord),
		byToken: make(map[string]int64),
	}
}

func (m *InMemoryRecordManager) CreateRecord(_ context.Context, record models.RefreshRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	record.ID = m.nextID
	m.records[record.ID] = record
	m.byToken[record.Token] = record.ID

	return record.ID, nil
}

func (m *InMemoryRecordManager) FindRecordByToken(_ context.Context, token string) (*models.RefreshRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byToken[token]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	record := m.records[id]
	return &record, nil
}

func (m *InMemoryRecordManager) FindRecordsByOwner(_ context.Context, ownerID string) ([]models.RefreshRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []models.RefreshRecord
	for _, record := range m.records {
		if record.OwnerID == ownerID {
			records = append(records, record)
		}
	}
	return records, nil
}

func (m *InMemoryRecordManager) CompareAndMarkUsed(_ context.Context, recordID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[recordID]
	if !ok || record.IsUsed {
		return false, nil
	}
	record.IsUsed = true
	m.records[recordID] = record
	return true, nil
}

func (m *InMemoryRecordManager) RevokeRecord(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byToken[token]
	if !ok {
		return storage.ErrRecordNotFound
	}
	record := m.records[id]
	record.IsRevoked = true
	m.records[id] = record
	return nil
}
