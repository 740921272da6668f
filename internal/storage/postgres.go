package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/apperrors"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/utils"
)

// --- Retry Logic Configuration ---
const (
	defaultRetryInitialInterval = 50 * time.Millisecond
	defaultRetryMaxInterval     = 2 * time.Second
	readRetryMaxElapsedTime     = 5 * time.Second  // More aggressive for reads
	commitRetryMaxElapsedTime   = 15 * time.Second // More tolerant for commits
)

// newRetryPolicy creates a new exponential backoff policy with context awareness.
func newRetryPolicy(ctx context.Context, maxElapsedTime time.Duration) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaultRetryInitialInterval
	b.MaxInterval = defaultRetryMaxInterval
	b.MaxElapsedTime = maxElapsedTime
	b.Reset()
	return backoff.WithContext(b, ctx)
}

// retryableOperation runs a database operation, retrying only errors that look transient.
func retryableOperation(ctx context.Context, policy backoff.BackOffContext, opName string, operation func() error) error {
	notify := func(err error, d time.Duration) {
		logger.FromContext(ctx).Warn("Retrying DB operation",
			zap.String("operation", opName),
			zap.Error(err),
			zap.Duration("after", d),
		)
	}

	lastTransient := false
	err := backoff.RetryNotify(func() error {
		err := operation()
		lastTransient = false
		switch {
		case err == nil:
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound),
			errors.Is(err, gorm.ErrInvalidTransaction),
			errors.Is(err, gorm.ErrDuplicatedKey),
			errors.Is(err, gorm.ErrForeignKeyViolated):
			return backoff.Permanent(err)
		case isTransientError(err):
			lastTransient = true
			return err
		default:
			return backoff.Permanent(err)
		}
	}, policy, notify)

	// Retries ran out on a transient failure; callers may try again later.
	if err != nil && lastTransient && ctx.Err() == nil {
		return apperrors.NewRetryable(err, "%s: retries exhausted", opName)
	}
	return err
}

// observedRead runs a read with the read retry policy and records its duration.
func observedRead(ctx context.Context, opName, entity string, operation func() error) error {
	startTime := utils.Now()
	err := retryableOperation(ctx, newRetryPolicy(ctx, readRetryMaxElapsedTime), opName, operation)
	observer.ObserveDbOperationDuration(opName, entity, tenant.CompanyOrUnknown(ctx), time.Since(startTime), err)
	return err
}

// observedWrite runs a write with the commit retry policy and records its duration.
func observedWrite(ctx context.Context, opName, entity string, operation func() error) error {
	startTime := utils.Now()
	err := retryableOperation(ctx, newRetryPolicy(ctx, commitRetryMaxElapsedTime), opName, operation)
	observer.ObserveDbOperationDuration(opName, entity, tenant.CompanyOrUnknown(ctx), time.Since(startTime), err)
	return err
}

// observedInsert is observedWrite for rows whose primary key is generated by the caller.
// A transient failure can hide a commit, so a primary-key conflict on a later attempt
// means the earlier attempt already stored the row.
func observedInsert(ctx context.Context, entity string, operation func() error) error {
	hadTransient := false
	insert := func() error {
		err := operation()
		if err == nil {
			return nil
		}
		if hadTransient && isPrimaryKeyConflict(err) {
			logger.FromContext(ctx).Warn("Insert retry hit its own committed row",
				zap.String("entity", entity),
				zap.Error(err),
			)
			return nil
		}
		if isTransientError(err) {
			hadTransient = true
		}
		return err
	}
	return observedWrite(ctx, "create", entity, insert)
}

// isPrimaryKeyConflict reports a unique violation on a table's primary key constraint.
func isPrimaryKeyConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && strings.HasSuffix(pgErr.ConstraintName, "_pkey")
}

// transientIndicators are driver error fragments that usually mean a network blip or failover.
var transientIndicators = []string{
	"connection refused",
	"network is unreachable",
	"i/o timeout",
	"broken pipe",
	"connection reset",
	"could not translate host name",
	"no route to host",
	"database system is starting up",
	"connection timed out",
}

// isTransientError checks if the error suggests a temporary issue like a network problem.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// https://www.postgresql.org/docs/current/errcodes-appendix.html
	// 08: connection exception, 53: insufficient resources, 40P01/40001: deadlock and serialization
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "08") ||
			strings.HasPrefix(pgErr.Code, "53") ||
			pgErr.Code == "40P01" ||
			pgErr.Code == "40001" {
			return true
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, indicator := range transientIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// PostgresRepo implements the CRM and automation repositories on top of GORM
type PostgresRepo struct {
	db *gorm.DB
}

// tenantNamer implements gorm schema.Namer interface for multi-tenant schemas
// It embeds the default NamingStrategy and overrides TableName.
type tenantNamer struct {
	schema.NamingStrategy
	schemaName string
}

// TableName qualifies the pluralised table name with the tenant schema.
func (tn tenantNamer) TableName(table string) string {
	return fmt.Sprintf("%q.%s", tn.schemaName, tn.NamingStrategy.TableName(table))
}

// SchemaName returns the Postgres schema that holds a company's CRM tables.
func SchemaName(companyID string) string {
	return fmt.Sprintf("daisi_%s", companyID)
}

// migratedModels lists every table owned by the automation engine.
func migratedModels() []interface{} {
	return []interface{}{
		&model.Lead{},
		&model.Project{},
		&model.Task{},
		&model.Notification{},
		&model.Activity{},
		&model.AutomationRule{},
		&model.AutomationRuleLog{},
		&model.Setting{},
	}
}

func connectWithRetry(dialector func() gorm.Dialector, cfg *gorm.Config, what string) (*gorm.DB, error) {
	operation := func() (*gorm.DB, error) {
		db, err := gorm.Open(dialector(), cfg)
		if err != nil {
			if isTransientError(err) {
				logger.Log.Warn("Failed to connect to postgres (transient), retrying...", zap.String("target", what), zap.Error(err))
				return nil, err
			}
			return nil, backoff.Permanent(fmt.Errorf("failed to connect to %s: %w", what, err))
		}
		return db, nil
	}

	notify := func(err error, d time.Duration) {
		logger.Log.Warn("Retrying DB connection", zap.String("target", what), zap.Error(err), zap.Duration("after", d))
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 15 * time.Second
	b.MaxElapsedTime = 1 * time.Minute

	return backoff.RetryNotifyWithData(operation, b, notify)
}

// NewPostgresRepo connects to Postgres, ensures the company schema exists and optionally migrates it.
func NewPostgresRepo(dsn string, autoMigrate bool, companyID string) (*PostgresRepo, error) {
	dbDefault, err := connectWithRetry(func() gorm.Dialector { return postgres.Open(dsn) }, &gorm.Config{}, "default postgres db")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to default postgres after retries: %w", err)
	}

	schemaName := SchemaName(companyID)
	logger.Log.Info("Ensuring PostgreSQL schema exists", zap.String("schema", schemaName))

	if err := dbDefault.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %q", schemaName)).Error; err != nil {
		closeGormDB(dbDefault)
		return nil, fmt.Errorf("failed to create schema %s: %w", schemaName, err)
	}
	closeGormDB(dbDefault)

	db, err := connectWithRetry(func() gorm.Dialector { return postgres.Open(dsn) }, &gorm.Config{
		NamingStrategy: tenantNamer{schemaName: schemaName},
		NowFunc:        utils.Now,
	}, "tenant schema "+schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres tenant db %s after retries: %w", schemaName, err)
	}

	repo := &PostgresRepo{db: db}

	if !autoMigrate {
		logger.Log.Info("Auto-migration disabled")
		return repo, nil
	}

	logger.Log.Info("Running auto-migration for schema", zap.String("schema", schemaName))
	if err := db.AutoMigrate(migratedModels()...); err != nil {
		logger.Log.Error("Auto-migration failed or produced errors", zap.Error(err), zap.String("schema", schemaName))
	}

	// The engine cannot run without its rule tables
	checkExistsSQL := `SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_schema = ? AND table_name = ?)`
	for _, table := range []string{"automation_rules", "automation_rule_logs"} {
		var exists bool
		if err := db.Raw(checkExistsSQL, schemaName, table).Scan(&exists).Error; err != nil {
			closeGormDB(db)
			return nil, fmt.Errorf("failed to check for '%s' table existence after migration in schema %s: %w", table, schemaName, err)
		}
		if !exists {
			closeGormDB(db)
			return nil, fmt.Errorf("'%s' table still does not exist after auto-migration in schema %s", table, schemaName)
		}
		logger.Log.Debug("Table verified post-migration", zap.String("table", table), zap.String("schema", schemaName))
	}

	return repo, nil
}

// NewPostgresRepoFromDB wraps an already opened GORM handle.
func NewPostgresRepoFromDB(db *gorm.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// AutoMigrate creates or updates every engine table on the wrapped handle.
func (r *PostgresRepo) AutoMigrate() error {
	return r.db.AutoMigrate(migratedModels()...)
}

// Ping checks that the database is reachable.
func (r *PostgresRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("%w: failed to get SQL DB: %w", apperrors.ErrDatabase, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping failed: %w", apperrors.ErrDatabase, err)
	}
	return nil
}

func closeGormDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Log.Warn("Failed to get underlying SQL DB handle for closing", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Log.Warn("Failed to close DB connection", zap.Error(err))
	}
}

// Close closes the database connection
func (r *PostgresRepo) Close(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to get underlying SQL DB for closing", zap.Error(err))
		return nil
	}

	if err := sqlDB.Close(); err != nil {
		logger.FromContext(ctx).Error("Failed to close database connection", zap.Error(err))
		return fmt.Errorf("failed to close SQL DB: %w", err)
	}

	logger.FromContext(ctx).Info("Database connection closed successfully")
	return nil
}

// checkConstraintViolation inspects database errors and maps them to standard apperrors.
func checkConstraintViolation(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", apperrors.ErrNotFound, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", apperrors.ErrTimeout, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: constraint %s: %w", apperrors.ErrDuplicate, pgErr.ConstraintName, err)
		case "23503", "23514": // foreign_key_violation, check_violation
			return fmt.Errorf("%w: constraint %s: %w", apperrors.ErrBadRequest, pgErr.ConstraintName, err)
		case "23502": // not_null_violation
			return fmt.Errorf("%w: null value in column %s: %w", apperrors.ErrBadRequest, pgErr.ColumnName, err)
		case "22001": // string_data_right_truncation
			return fmt.Errorf("%w: value too long for column %s: %w", apperrors.ErrBadRequest, pgErr.ColumnName, err)
		case "22P02": // invalid_text_representation, e.g. a malformed uuid
			return fmt.Errorf("%w: invalid input syntax for type %s: %w", apperrors.ErrBadRequest, pgErr.DataTypeName, err)
		case "40001", "40P01":
			return fmt.Errorf("%w: transaction rollback (%s): %w", apperrors.ErrDatabase, pgErr.Code, err)
		default:
			if strings.HasPrefix(pgErr.Code, "53") {
				return fmt.Errorf("%w: insufficient resources (%s): %w", apperrors.ErrDatabase, pgErr.Code, err)
			}
			if strings.HasPrefix(pgErr.Code, "08") {
				return fmt.Errorf("%w: connection error (%s): %w", apperrors.ErrDatabase, pgErr.Code, err)
			}
			return fmt.Errorf("%w: unhandled pgcode %s: %w", apperrors.ErrDatabase, pgErr.Code, err)
		}
	}

	return fmt.Errorf("%w: %w", apperrors.ErrDatabase, err)
}
