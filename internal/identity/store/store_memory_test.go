package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"idstatus/internal/identity/models"
	id "idstatus/pkg/domain"
	"idstatus/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func newRecord(nino id.Nino, subject id.SubjectID, at time.Time) *models.IdentityRecord {
	return &models.IdentityRecord{
		SubjectID:           subject,
		Nino:                nino,
		VerificationChannel: "online",
		ConfidenceLevel:     models.ConfidenceMedium,
		LastUpdated:         at,
	}
}

func (s *InMemoryStoreSuite) TestSaveAssignsID() {
	saved, err := s.store.Save(s.ctx, newRecord("AB123456C", "a@example.com", time.Now()))
	s.Require().NoError(err)
	s.True(saved.IsPersisted())

	found, err := s.store.FindByID(s.ctx, saved.ID)
	s.Require().NoError(err)
	s.Equal(saved, found)
}

func (s *InMemoryStoreSuite) TestSaveUnknownIDIsNotFound() {
	r := newRecord("AB123456C", "a@example.com", time.Now())
	r.ID = id.NewRecordID()
	_, err := s.store.Save(s.ctx, r)
	s.ErrorIs(err, ErrNotFound)
}

func (s *InMemoryStoreSuite) TestFinders() {
	saved, err := s.store.Save(s.ctx, newRecord("AB123456C", "a@example.com", time.Now()))
	s.Require().NoError(err)

	s.Run("by nino", func() {
		found, err := s.store.FindByNino(s.ctx, "AB123456C")
		s.Require().NoError(err)
		s.Equal(saved.ID, found.ID)
	})

	s.Run("by subject", func() {
		found, err := s.store.FindBySubjectID(s.ctx, "a@example.com")
		s.Require().NoError(err)
		s.Equal(saved.ID, found.ID)
	})

	s.Run("misses return ErrNotFound", func() {
		_, err := s.store.FindByNino(s.ctx, "ZZ999999Z")
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindBySubjectID(s.ctx, "nobody@example.com")
		s.ErrorIs(err, ErrNotFound)
		_, err = s.store.FindByApplicationReference(s.ctx, "APP-1")
		s.ErrorIs(err, ErrNotFound)
		_, err = s.store.FindByApplicationReference(s.ctx, "")
		s.ErrorIs(err, ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestFindReturnsLatestOfDuplicates() {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.store.Save(s.ctx, newRecord("AB123456C", "old@example.com", older))
	s.Require().NoError(err)
	newer, err := s.store.Save(s.ctx, newRecord("AB123456C", "new@example.com", older.Add(time.Hour)))
	s.Require().NoError(err)

	found, err := s.store.FindByNino(s.ctx, "AB123456C")
	s.Require().NoError(err)
	s.Equal(newer.ID, found.ID)
}

func (s *InMemoryStoreSuite) TestReturnedRecordsDoNotAlias() {
	saved, err := s.store.Save(s.ctx, newRecord("AB123456C", "a@example.com", time.Now()))
	s.Require().NoError(err)
	saved.VerificationChannel = "mutated"

	found, err := s.store.FindByID(s.ctx, saved.ID)
	s.Require().NoError(err)
	s.Equal("online", found.VerificationChannel)
}

func (s *InMemoryStoreSuite) TestApplicationReferenceRules() {
	s.Run("reference can be set while empty", func() {
		saved, err := s.store.Save(s.ctx, newRecord("AB123456C", "a@example.com", time.Now()))
		s.Require().NoError(err)
		saved.ApplicationReference = "APP-1"
		_, err = s.store.Save(s.ctx, saved)
		s.Require().NoError(err)

		found, err := s.store.FindByApplicationReference(s.ctx, "APP-1")
		s.Require().NoError(err)
		s.Equal(saved.ID, found.ID)
	})

	s.Run("stored reference cannot be replaced", func() {
		found, err := s.store.FindByApplicationReference(s.ctx, "APP-1")
		s.Require().NoError(err)
		found.ApplicationReference = "APP-2"
		_, err = s.store.Save(s.ctx, found)
		s.ErrorIs(err, ErrApplicationReferenceConflict)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("reference cannot move to a second record", func() {
		other, err := s.store.Save(s.ctx, newRecord("CD654321A", "b@example.com", time.Now()))
		s.Require().NoError(err)
		other.ApplicationReference = "APP-1"
		_, err = s.store.Save(s.ctx, other)
		s.ErrorIs(err, ErrApplicationReferenceConflict)
	})

	s.Run("a failed save leaves state untouched", func() {
		found, err := s.store.FindByNino(s.ctx, "CD654321A")
		s.Require().NoError(err)
		s.False(found.HasApplicationReference())
	})
}

func (s *InMemoryStoreSuite) TestConcurrentReferenceClaims() {
	const goroutines = 20
	ids := make([]id.RecordID, goroutines)
	for i := range goroutines {
		saved, err := s.store.Save(s.ctx, newRecord(id.Nino("AB"+string(rune('A'+i))), id.SubjectID("p@example.com"), time.Now()))
		s.Require().NoError(err)
		ids[i] = saved.ID
	}

	var wg sync.WaitGroup
	var wins, conflicts atomic.Int32
	for _, recordID := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := s.store.FindByID(s.ctx, recordID)
			if err != nil {
				return
			}
			r.ApplicationReference = "APP-SHARED"
			if _, err := s.store.Save(s.ctx, r); err == nil {
				wins.Add(1)
			} else if err == ErrApplicationReferenceConflict {
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *InMemoryStoreSuite) TestSaveCount() {
	_, err := s.store.Save(s.ctx, newRecord("AB123456C", "a@example.com", time.Now()))
	s.Require().NoError(err)
	s.Equal(1, s.store.SaveCount())
}
