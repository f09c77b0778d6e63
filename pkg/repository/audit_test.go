package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/example/monarch/pkg/mutation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockRepo(t *testing.T) (*AuditRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create sqlmock")
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to open GORM connection")

	return NewAuditRepositoryFromDB(db), mock
}

func TestAuditRepository_RecordMutation(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO `audit_entries`").
		WithArgs("create", "orders", "o1", "u1", `{"total":300}`, at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.RecordMutation(context.Background(), mutation.Mutation{
		Action:     mutation.ActionCreate,
		Collection: "orders",
		DocumentID: "o1",
		UserID:     "u1",
		Fields:     map[string]any{"total": 300},
		At:         at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_RecordMutationDeleteHasNoPayload(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO `audit_entries`").
		WithArgs("delete", "routes", "r1", "u1", "", at).
		WillReturnResult(sqlmock.NewResult(2, 1))

	err := repo.RecordMutation(context.Background(), mutation.Mutation{
		Action:     mutation.ActionDelete,
		Collection: "routes",
		DocumentID: "r1",
		UserID:     "u1",
		At:         at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_RecordMutationError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("INSERT INTO `audit_entries`").WillReturnError(errors.New("disk full"))

	err := repo.RecordMutation(context.Background(), mutation.Mutation{Action: mutation.ActionCreate, Collection: "routes"})
	assert.ErrorContains(t, err, "failed to create audit entry")
}

func TestAuditRepository_Recent(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "action", "collection", "document_id", "user_id", "payload", "created_at"}).
		AddRow(2, "delete", "routes", "r1", "u1", "", at).
		AddRow(1, "create", "routes", "r1", "u1", `{"name":"NORTH"}`, at.Add(-time.Minute))
	mock.ExpectQuery("SELECT \\* FROM `audit_entries` ORDER BY created_at DESC LIMIT").WillReturnRows(rows)

	entries, err := repo.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "delete", entries[0].Action)
	assert.Equal(t, uint64(1), entries[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
