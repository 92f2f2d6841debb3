package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/Hburdack/happy-button-sub001/journal/postgresengine/internal/adapters"
	"github.com/Hburdack/happy-button-sub001/simulation"
)

var ErrNilDatabaseConnection = errors.New("nil database connection supplied")
var ErrEmptyJournalTableName = errors.New("journal table name must not be empty")
var ErrBuildInsertQueryFailed = errors.New("failed to build journal insert query")

const (
	defaultJournalTableName = "delivery_journal"
	logMsgInsertFailed      = "journal insert failed"
	logMsgRowsAffectedOff   = "journal insert affected an unexpected row count"
	logMsgRowJournaled      = "delivery journaled"
	logMsgSQLExecuted       = "executed sql for: journal append"
	logAttrError            = "error"
	logAttrQuery            = "query"
	logAttrEventID          = "event_id"
	logAttrRowsAffected     = "rows_affected"
	logAttrDurationMS       = "duration_ms"
	colEventID              = "event_id"
	colPriority             = "priority"
	colCategory             = "category"
	colTargetCount          = "target_count"
	colSimDay               = "sim_day"
	colSimHour              = "sim_hour"
	colOccurredAt           = "occurred_at"
	colPayload              = "payload"
	colDeliveredAt          = "delivered_at"
	dialectPostgres         = "postgres"
	castUUID                = "?::uuid"
	castTimestamp           = "?::timestamp with time zone"
	castJsonb               = "?::jsonb"
)

// Logger interface for SQL statement logging, warnings, and error reporting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Journal appends delivered event descriptors to a Postgres table. It
// implements simulation.Sender; failures are wrapped as transient so the
// dispatcher retries them.
type Journal struct {
	db               adapters.DBAdapter
	journalTableName string
	logger           Logger
	nowFn            func() time.Time
}

// Option defines a functional option for configuring a Journal.
type Option func(*Journal) error

// WithTableName sets the journal table name.
func WithTableName(tableName string) Option {
	return func(j *Journal) error {
		if tableName == "" {
			return ErrEmptyJournalTableName
		}

		j.journalTableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the Journal.
//
// Debug level: SQL statements with execution timing (development use)
// Info level: journaled deliveries (production-safe)
// Error level: insert failures.
func WithLogger(logger Logger) Option {
	return func(j *Journal) error {
		j.logger = logger
		return nil
	}
}

// WithNowFunc replaces the real-time source used for the delivered_at
// column and the receipt timestamp.
func WithNowFunc(nowFn func() time.Time) Option {
	return func(j *Journal) error {
		j.nowFn = nowFn
		return nil
	}
}

// NewJournalFromPGXPool creates a Journal using a pgx pool with optional configuration.
func NewJournalFromPGXPool(db *pgxpool.Pool, options ...Option) (Journal, error) {
	if db == nil {
		return Journal{}, ErrNilDatabaseConnection
	}

	return newJournal(adapters.NewPGXAdapter(db), options...)
}

// NewJournalFromSQLDB creates a Journal using a sql.DB with optional configuration.
func NewJournalFromSQLDB(db *sql.DB, options ...Option) (Journal, error) {
	if db == nil {
		return Journal{}, ErrNilDatabaseConnection
	}

	return newJournal(adapters.NewSQLAdapter(db), options...)
}

// NewJournalFromSQLX creates a Journal using a sqlx.DB with optional configuration.
func NewJournalFromSQLX(db *sqlx.DB, options ...Option) (Journal, error) {
	if db == nil {
		return Journal{}, ErrNilDatabaseConnection
	}

	return newJournal(adapters.NewSQLXAdapter(db), options...)
}

func newJournal(db adapters.DBAdapter, options ...Option) (Journal, error) {
	j := Journal{
		db:               db,
		journalTableName: defaultJournalTableName,
		nowFn:            time.Now,
	}

	for _, option := range options {
		if err := option(&j); err != nil {
			return Journal{}, err
		}
	}

	return j, nil
}

// Deliver appends the descriptor as one journal row and returns a receipt.
// Database failures are wrapped with simulation.ErrTransientDelivery so the
// dispatcher retries; a malformed descriptor payload is terminal because it
// can never succeed.
func (j Journal) Deliver(ctx context.Context, descriptor simulation.EventDescriptor) (simulation.DeliveryReceipt, error) {
	deliveredAt := j.nowFn()

	sqlQuery, buildErr := j.buildInsertQuery(descriptor, deliveredAt)
	if buildErr != nil {
		if j.logger != nil {
			j.logger.Error(logMsgInsertFailed, logAttrError, buildErr.Error(), logAttrEventID, descriptor.ID.String())
		}

		return simulation.DeliveryReceipt{}, errors.Join(simulation.ErrTerminalDelivery, buildErr)
	}

	start := time.Now()
	result, execErr := j.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)

	if j.logger != nil {
		j.logger.Debug(logMsgSQLExecuted, logAttrQuery, sqlQuery, logAttrDurationMS, duration.Milliseconds())
	}

	if execErr != nil {
		if j.logger != nil {
			j.logger.Error(logMsgInsertFailed, logAttrError, execErr.Error(), logAttrEventID, descriptor.ID.String())
		}

		return simulation.DeliveryReceipt{}, errors.Join(simulation.ErrTransientDelivery, execErr)
	}

	rowsAffected, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return simulation.DeliveryReceipt{}, errors.Join(simulation.ErrTransientDelivery, rowsErr)
	}

	if rowsAffected != 1 {
		if j.logger != nil {
			j.logger.Error(logMsgRowsAffectedOff, logAttrRowsAffected, rowsAffected, logAttrEventID, descriptor.ID.String())
		}

		return simulation.DeliveryReceipt{}, simulation.ErrTransientDelivery
	}

	if j.logger != nil {
		j.logger.Info(logMsgRowJournaled,
			logAttrEventID, descriptor.ID.String(),
			logAttrDurationMS, duration.Milliseconds())
	}

	return simulation.DeliveryReceipt{
		ID:          uuid.New(),
		DeliveredAt: deliveredAt,
	}, nil
}

// buildInsertQuery builds the single-row insert statement with explicit
// Postgres casts, so the generated SQL is self-contained.
func (j Journal) buildInsertQuery(descriptor simulation.EventDescriptor, deliveredAt time.Time) (string, error) {
	payload, payloadErr := descriptor.PayloadJSON()
	if payloadErr != nil {
		return "", errors.Join(ErrBuildInsertQueryFailed, payloadErr)
	}

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(j.journalTableName).
		Cols(colEventID, colPriority, colCategory, colTargetCount, colSimDay, colSimHour, colOccurredAt, colPayload, colDeliveredAt).
		Vals(goqu.Vals{
			goqu.L(castUUID, descriptor.ID.String()),
			descriptor.Priority.String(),
			descriptor.Category,
			descriptor.TargetCount,
			descriptor.SimDay,
			descriptor.SimHour,
			goqu.L(castTimestamp, descriptor.OccurredAt),
			goqu.L(castJsonb, string(payload)),
			goqu.L(castTimestamp, deliveredAt),
		})

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(ErrBuildInsertQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// Ensure Journal implements the Sender interface.
var _ simulation.Sender = Journal{}
