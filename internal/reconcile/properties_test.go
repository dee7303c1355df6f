package reconcile_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idstatus/internal/identity/models"
	"idstatus/internal/identity/store"
	"idstatus/internal/reconcile"
	"idstatus/internal/resolver"
	id "idstatus/pkg/domain"
)

// scriptedResolver answers from a map and counts calls.
type scriptedResolver struct {
	refs  map[id.Nino]id.ApplicationReference
	calls atomic.Int32
}

func (r *scriptedResolver) Resolve(_ context.Context, nino id.Nino) (resolver.Resolution, error) {
	r.calls.Add(1)
	if ref, ok := r.refs[nino]; ok {
		return resolver.Resolution{Outcome: resolver.Found, ApplicationReference: ref}, nil
	}
	return resolver.Resolution{Outcome: resolver.NotFound}, nil
}

func fact(nino id.Nino, subject id.SubjectID, level models.ConfidenceLevel) models.VerificationFact {
	return models.VerificationFact{
		IdentityID:      "idv-" + string(nino),
		SubjectID:       subject,
		Nino:            nino,
		Channel:         "oidv",
		Timestamp:       time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		ConfidenceLevel: level,
	}
}

func TestIdempotency(t *testing.T) {
	st := store.NewInMemory()
	res := &scriptedResolver{refs: map[id.Nino]id.ApplicationReference{"RN000004A": "APP-1"}}
	engine := reconcile.New(st, res)
	ctx := context.Background()

	f := fact("RN000004A", "a@b.com", models.ConfidenceMedium)
	_, err := engine.Reconcile(ctx, f)
	require.NoError(t, err)
	_, err = engine.Reconcile(ctx, f)
	require.ErrorIs(t, err, reconcile.ErrDuplicateFact)

	assert.Equal(t, 1, st.SaveCount())
	assert.Equal(t, int32(1), res.calls.Load())
}

func TestConcurrentDuplicatesSaveOnce(t *testing.T) {
	st := store.NewInMemory()
	res := &scriptedResolver{refs: map[id.Nino]id.ApplicationReference{"RN000004A": "APP-1"}}
	engine := reconcile.New(st, res)

	const workers = 32
	var wg sync.WaitGroup
	var persisted, duplicates atomic.Int32
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Reconcile(context.Background(), fact("RN000004A", "a@b.com", models.ConfidenceMedium))
			switch {
			case err == nil:
				persisted.Add(1)
			case errors.Is(err, reconcile.ErrDuplicateFact):
				duplicates.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), persisted.Load())
	assert.Equal(t, int32(workers-1), duplicates.Load())
	assert.Equal(t, 1, st.SaveCount())
}

func TestKeyMergeCommutativity(t *testing.T) {
	orders := map[string][]models.VerificationFact{
		"nino first": {
			fact("RN000004A", "a@b.com", models.ConfidenceLow),
			fact("RN000004A", "a@b.com", models.ConfidenceMedium),
		},
		"subject carries a corrected nino": {
			fact("RN000009A", "a@b.com", models.ConfidenceLow),
			fact("RN000004A", "a@b.com", models.ConfidenceMedium),
		},
	}
	for name, facts := range orders {
		t.Run(name, func(t *testing.T) {
			st := store.NewInMemory()
			engine := reconcile.New(st, &scriptedResolver{})
			ctx := context.Background()

			first, err := engine.Reconcile(ctx, facts[0])
			require.NoError(t, err)
			second, err := engine.Reconcile(ctx, facts[1])
			require.NoError(t, err)

			assert.Equal(t, first.ID, second.ID, "both facts must land on one record")
			got, err := st.FindByNino(ctx, "RN000004A")
			require.NoError(t, err)
			assert.Equal(t, first.ID, got.ID)
			assert.Equal(t, models.ConfidenceMedium, got.ConfidenceLevel)
		})
	}
}

func TestResolutionStickiness(t *testing.T) {
	st := store.NewInMemory()
	res := &scriptedResolver{refs: map[id.Nino]id.ApplicationReference{"RN000004A": "APP-1"}}
	engine := reconcile.New(st, res)
	ctx := context.Background()

	_, err := engine.Reconcile(ctx, fact("RN000004A", "a@b.com", models.ConfidenceLow))
	require.NoError(t, err)

	// the resolver would now answer differently
	res.refs["RN000004A"] = "APP-2"
	record, err := engine.Reconcile(ctx, fact("RN000004A", "a@b.com", models.ConfidenceMedium))
	require.NoError(t, err)

	assert.Equal(t, id.ApplicationReference("APP-1"), record.ApplicationReference)
	assert.Equal(t, int32(1), res.calls.Load())
}

func TestReferenceHeldByAnotherPersonIsConflict(t *testing.T) {
	st := store.NewInMemory()
	res := &scriptedResolver{refs: map[id.Nino]id.ApplicationReference{
		"RN000004A": "APP-1",
		"RN000005A": "APP-1",
	}}
	engine := reconcile.New(st, res)
	ctx := context.Background()

	_, err := engine.Reconcile(ctx, fact("RN000004A", "a@b.com", models.ConfidenceMedium))
	require.NoError(t, err)
	_, err = engine.Reconcile(ctx, fact("RN000005A", "c@d.com", models.ConfidenceMedium))
	require.ErrorIs(t, err, store.ErrApplicationReferenceConflict)

	_, err = st.FindByNino(ctx, "RN000005A")
	assert.ErrorIs(t, err, store.ErrNotFound, "a conflicting write must not persist")
}
