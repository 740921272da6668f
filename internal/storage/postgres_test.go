package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
)

// Note on SQL Query Matching in Tests:
// GORM adds ORDER BY / LIMIT clauses that make exact matching brittle, so read
// queries are matched with sqlmock.QueryMatcherRegexp on their stable prefix.

const testTenantID = "tenant-test-123"

// newMockDB creates a sqlmock-backed GORM handle speaking the Postgres dialect.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	logger.Log = zaptest.NewLogger(t).Named("test")
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.MonitorPingsOption(true),
	)
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
		Logger:                 gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	teardown := func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	}
	return gormDB, mock, teardown
}

func tenantContext() context.Context {
	return tenant.WithCompanyID(context.Background(), testTenantID)
}

func TestIsTransientError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{"Nil error", nil, false},
		{"Context deadline exceeded", context.DeadlineExceeded, true},
		{"Wrapped context deadline exceeded", fmt.Errorf("operation failed: %w", context.DeadlineExceeded), true},
		{"GORM record not found", gorm.ErrRecordNotFound, false},
		{"PG connection exception (08000)", &pgconn.PgError{Code: "08000"}, true},
		{"PG insufficient resources (53100)", &pgconn.PgError{Code: "53100"}, true},
		{"PG deadlock (40P01)", &pgconn.PgError{Code: "40P01"}, true},
		{"PG serialization failure (40001)", &pgconn.PgError{Code: "40001"}, true},
		{"PG undefined table (42P01)", &pgconn.PgError{Code: "42P01"}, false},
		{"Wrapped PG connection exception", checkConstraintViolation(&pgconn.PgError{Code: "08006"}), true},
		{"Connection refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), true},
		{"I/O timeout", errors.New("read tcp 10.0.0.1:1234->10.0.0.2:5432: i/o timeout"), true},
		{"DB starting up", errors.New("FATAL: the database system is starting up"), true},
		{"Generic error", errors.New("some other database error"), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, isTransientError(tc.err))
		})
	}
}

func TestTenantNamer_TableName(t *testing.T) {
	namer := tenantNamer{schemaName: SchemaName("acme")}

	assert.Equal(t, `"daisi_acme".leads`, namer.TableName("lead"))
	assert.Equal(t, `"daisi_acme".activities`, namer.TableName("activity"))
	assert.Equal(t, `"daisi_acme".automation_rule_logs`, namer.TableName("automation_rule_log"))
	assert.Equal(t, `"daisi_acme".settings`, model.Setting{}.TableName(namer))
}

func TestPostgresRepo_Close(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		gormDB, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)
		repo := NewPostgresRepoFromDB(gormDB)

		mock.ExpectClose()

		assert.NoError(t, repo.Close(context.Background()))
	})

	t.Run("Close fails", func(t *testing.T) {
		gormDB, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)
		repo := NewPostgresRepoFromDB(gormDB)

		mock.ExpectClose().WillReturnError(errors.New("db close error"))

		err := repo.Close(context.Background())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to close SQL DB")
		assert.Contains(t, err.Error(), "db close error")
	})
}

func TestPostgresRepo_Ping(t *testing.T) {
	t.Run("Reachable", func(t *testing.T) {
		gormDB, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)
		mock.ExpectPing()

		assert.NoError(t, NewPostgresRepoFromDB(gormDB).Ping(context.Background()))
	})

	t.Run("Unreachable", func(t *testing.T) {
		gormDB, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		err := NewPostgresRepoFromDB(gormDB).Ping(context.Background())
		assert.ErrorIs(t, err, apperrors.ErrDatabase)
	})
}

func TestPostgresRepo_FindLeadsByStageWithOwner_SQL(t *testing.T) {
	gormDB, mock, teardown := newMockDB(t)
	t.Cleanup(teardown)
	repo := NewPostgresRepoFromDB(gormDB)

	owner := "owner-1"
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "title", "stage", "owner_id", "value", "created_at", "updated_at"}).
		AddRow("lead-1", "Acme", model.LeadStageContacted, owner, 100.0, now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "leads" WHERE stage = $1 AND owner_id IS NOT NULL`)).
		WithArgs(model.LeadStageContacted).
		WillReturnRows(rows)

	leads, err := repo.FindLeadsByStageWithOwner(tenantContext(), model.LeadStageContacted)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "lead-1", leads[0].ID)
	require.NotNil(t, leads[0].OwnerID)
	assert.Equal(t, owner, *leads[0].OwnerID)
}

func TestPostgresRepo_FindActiveRulesByTrigger_PermanentErrorNotRetried(t *testing.T) {
	gormDB, mock, teardown := newMockDB(t)
	t.Cleanup(teardown)
	repo := NewPostgresRepoFromDB(gormDB)

	// Expected exactly once: 42P01 is not transient
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "automation_rules" WHERE trigger_type = $1 AND is_active = $2`)).
		WithArgs(model.TriggerDailyCron, true).
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "automation_rules" does not exist`})

	rules, err := repo.FindActiveRulesByTrigger(tenantContext(), model.TriggerDailyCron)
	assert.Nil(t, rules)
	assert.ErrorIs(t, err, apperrors.ErrDatabase)
	assert.ErrorContains(t, err, "42P01")
}

func TestPostgresRepo_FindRuleByID_NotFound_SQL(t *testing.T) {
	gormDB, mock, teardown := newMockDB(t)
	t.Cleanup(teardown)
	repo := NewPostgresRepoFromDB(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "automation_rules" WHERE id = $1`)).
		WithArgs("missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rule, err := repo.FindRuleByID(tenantContext(), "missing")
	assert.Nil(t, rule)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCheckConstraintViolation(t *testing.T) {
	originalUnique := &pgconn.PgError{Code: "23505", ConstraintName: "automation_rules_pkey"}
	originalFK := &pgconn.PgError{Code: "23503", ConstraintName: "fk_tasks_leads"}
	originalNotNull := &pgconn.PgError{Code: "23502", ColumnName: "user_profile_id"}
	originalTruncate := &pgconn.PgError{Code: "22001", ColumnName: "title"}
	originalInvalidText := &pgconn.PgError{Code: "22P02", DataTypeName: "uuid"}
	originalDeadlock := &pgconn.PgError{Code: "40P01"}
	originalResource := &pgconn.PgError{Code: "53200"}
	originalConnection := &pgconn.PgError{Code: "08003"}
	originalUnhandledPg := &pgconn.PgError{Code: "XX000"}
	originalGeneric := errors.New("some generic DB error")

	testCases := []struct {
		name            string
		inErr           error
		expectedStdErr  error
		originalMsgFrag string
	}{
		{"Nil error", nil, nil, ""},
		{"GORM record not found", gorm.ErrRecordNotFound, apperrors.ErrNotFound, "record not found"},
		{"Wrapped GORM record not found", fmt.Errorf("wrapper: %w", gorm.ErrRecordNotFound), apperrors.ErrNotFound, "record not found"},
		{"Deadline exceeded", context.DeadlineExceeded, apperrors.ErrTimeout, "deadline exceeded"},
		{"PG unique violation", originalUnique, apperrors.ErrDuplicate, "automation_rules_pkey"},
		{"PG foreign key violation", originalFK, apperrors.ErrBadRequest, "fk_tasks_leads"},
		{"PG not null violation", originalNotNull, apperrors.ErrBadRequest, "user_profile_id"},
		{"PG string truncation", originalTruncate, apperrors.ErrBadRequest, "title"},
		{"PG invalid text representation", originalInvalidText, apperrors.ErrBadRequest, "uuid"},
		{"PG deadlock", originalDeadlock, apperrors.ErrDatabase, "40P01"},
		{"PG insufficient resources", originalResource, apperrors.ErrDatabase, "53200"},
		{"PG connection exception", originalConnection, apperrors.ErrDatabase, "08003"},
		{"PG unhandled code", originalUnhandledPg, apperrors.ErrDatabase, "XX000"},
		{"Generic error", originalGeneric, apperrors.ErrDatabase, "some generic DB error"},
		{"Wrapped PG unique violation", fmt.Errorf("wrapper: %w", originalUnique), apperrors.ErrDuplicate, "automation_rules_pkey"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			outErr := checkConstraintViolation(tc.inErr)

			if tc.expectedStdErr == nil {
				assert.NoError(t, outErr)
				return
			}
			assert.ErrorIs(t, outErr, tc.expectedStdErr)
			assert.ErrorContains(t, outErr, tc.originalMsgFrag)
			assert.ErrorIs(t, outErr, tc.inErr)
		})
	}
}

func TestRetryableOperation_ExhaustedTransientIsRetryable(t *testing.T) {
	logger.Log = zaptest.NewLogger(t)
	ctx := tenantContext()
	calls := 0

	err := retryableOperation(ctx, newRetryPolicy(ctx, 200*time.Millisecond), "find_active", func() error {
		calls++
		return fmt.Errorf("%w: dial tcp: connection refused", apperrors.ErrDatabase)
	})

	require.Error(t, err)
	assert.Greater(t, calls, 1)
	assert.True(t, apperrors.IsRetryable(err))
	assert.False(t, apperrors.IsFatal(err))
	assert.ErrorIs(t, err, apperrors.ErrDatabase)
}

func TestRetryableOperation_PermanentIsNotRetryable(t *testing.T) {
	logger.Log = zaptest.NewLogger(t)
	ctx := tenantContext()
	calls := 0

	err := retryableOperation(ctx, newRetryPolicy(ctx, 200*time.Millisecond), "create", func() error {
		calls++
		return checkConstraintViolation(&pgconn.PgError{Code: "23503", ConstraintName: "fk_tasks_leads"})
	})

	assert.Equal(t, 1, calls)
	assert.False(t, apperrors.IsRetryable(err))
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestPostgresRepo_CreateTask_RetryAfterHiddenCommit(t *testing.T) {
	gormDB, mock, teardown := newMockDB(t)
	t.Cleanup(teardown)
	repo := NewPostgresRepoFromDB(gormDB)

	// The first attempt committed but the acknowledgement was lost.
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "tasks"`)).
		WillReturnError(errors.New("write tcp 10.0.0.1:5432: connection reset by peer"))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "tasks"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "tasks_pkey", Message: "duplicate key value violates unique constraint"})

	task, err := repo.CreateTask(tenantContext(), model.Task{ID: "7f1c5a7e-6a42-4c1d-9a4e-0d1f3b1f2a11", Title: "Follow-up lead: Acme", Status: model.TaskStatusTodo})
	require.NoError(t, err)
	assert.Equal(t, "7f1c5a7e-6a42-4c1d-9a4e-0d1f3b1f2a11", task.ID)
}

func TestPostgresRepo_CreateTask_DuplicateWithoutRetryFails(t *testing.T) {
	gormDB, mock, teardown := newMockDB(t)
	t.Cleanup(teardown)
	repo := NewPostgresRepoFromDB(gormDB)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "tasks"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "tasks_pkey"})

	task, err := repo.CreateTask(tenantContext(), model.Task{ID: "7f1c5a7e-6a42-4c1d-9a4e-0d1f3b1f2a11", Title: "Duplicate", Status: model.TaskStatusTodo})
	assert.Nil(t, task)
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)
}

func TestIsPrimaryKeyConflict(t *testing.T) {
	assert.True(t, isPrimaryKeyConflict(checkConstraintViolation(&pgconn.PgError{Code: "23505", ConstraintName: "notifications_pkey"})))
	assert.False(t, isPrimaryKeyConflict(&pgconn.PgError{Code: "23505", ConstraintName: "idx_settings_key"}))
	assert.False(t, isPrimaryKeyConflict(&pgconn.PgError{Code: "23503", ConstraintName: "tasks_pkey"}))
	assert.False(t, isPrimaryKeyConflict(errors.New("connection reset")))
}
