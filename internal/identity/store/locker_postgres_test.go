package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "idstatus/pkg/domain-errors"
)

func TestPostgresLockerDatabaseDownIsUnavailable(t *testing.T) {
	db, err := sql.Open("postgres", "postgres://idstatus@127.0.0.1:1/idstatus?sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, db.Close())
	locker := NewPostgresLocker(db, time.Second)

	called := false
	err = locker.WithKeyLock(context.Background(), []string{"nino:RN000004A", "subject:a@b.com"}, func(context.Context) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, called)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable), "got %v", err)
}
