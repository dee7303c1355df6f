package store

import (
	"context"
	"sync"

	"idstatus/internal/identity/models"
	id "idstatus/pkg/domain"
)

// InMemory keeps identity records in process memory. It enforces the same
// application-reference rules as the Postgres store so tests exercise the
// conditional write.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.RecordID]*models.IdentityRecord
	byRef   map[id.ApplicationReference]id.RecordID
	saves   int
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		records: make(map[id.RecordID]*models.IdentityRecord),
		byRef:   make(map[id.ApplicationReference]id.RecordID),
	}
}

func (s *InMemory) FindByID(_ context.Context, recordID id.RecordID) (*models.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.records[recordID]; ok {
		return r.Clone(), nil
	}
	return nil, ErrNotFound
}

func (s *InMemory) FindByNino(_ context.Context, nino id.Nino) (*models.IdentityRecord, error) {
	return s.findLatest(func(r *models.IdentityRecord) bool { return r.Nino == nino })
}

func (s *InMemory) FindBySubjectID(_ context.Context, subjectID id.SubjectID) (*models.IdentityRecord, error) {
	return s.findLatest(func(r *models.IdentityRecord) bool { return r.SubjectID == subjectID })
}

func (s *InMemory) FindByApplicationReference(_ context.Context, ref id.ApplicationReference) (*models.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if recordID, ok := s.byRef[ref]; ok && !ref.IsEmpty() {
		return s.records[recordID].Clone(), nil
	}
	return nil, ErrNotFound
}

// findLatest returns the most recently updated match; secondary keys are not
// unique at the storage level.
func (s *InMemory) findLatest(match func(*models.IdentityRecord) bool) (*models.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.IdentityRecord
	for _, r := range s.records {
		if !match(r) {
			continue
		}
		if found == nil || r.LastUpdated.After(found.LastUpdated) {
			found = r
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found.Clone(), nil
}

// Save inserts a record without an ID or updates an existing one. A stored
// application reference can only be written while it is empty.
func (s *InMemory) Save(_ context.Context, record *models.IdentityRecord) (*models.IdentityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := record.Clone()
	if next.IsPersisted() {
		existing, ok := s.records[next.ID]
		if !ok {
			return nil, ErrNotFound
		}
		if existing.HasApplicationReference() && existing.ApplicationReference != next.ApplicationReference {
			return nil, ErrApplicationReferenceConflict
		}
	} else {
		next.ID = id.NewRecordID()
	}

	if next.HasApplicationReference() {
		if holder, ok := s.byRef[next.ApplicationReference]; ok && holder != next.ID {
			return nil, ErrApplicationReferenceConflict
		}
		s.byRef[next.ApplicationReference] = next.ID
	}
	s.records[next.ID] = next
	s.saves++
	return next.Clone(), nil
}

// SaveCount reports how many successful saves the store has accepted.
func (s *InMemory) SaveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
