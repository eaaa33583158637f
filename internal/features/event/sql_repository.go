package event

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go-fleetreport/internal/features/constraint"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder syntax.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectMySQL
	DialectSQLite
)

// ParseDialect maps an EVENT_STORE value to a dialect and database/sql driver name.
func ParseDialect(storeType string) (Dialect, string, error) {
	switch strings.ToLower(storeType) {
	case "postgres", "postgresql":
		return DialectPostgres, "postgres", nil
	case "mysql":
		return DialectMySQL, "mysql", nil
	case "sqlite":
		return DialectSQLite, "sqlite", nil
	}
	return 0, "", fmt.Errorf("unsupported sql event store %q", storeType)
}

const eventColumns = "account_id, device_id, event_time, status_code, latitude, longitude, gps_valid, " +
	"speed_kph, heading, altitude, odometer_km, driver_id, geozone_id, address"

// filterColumns maps Filter fields to columns.
var filterColumns = map[string]string{
	"deviceID":   "device_id",
	"driverID":   "driver_id",
	"geozoneID":  "geozone_id",
	"statusCode": "status_code",
}

type SQLStore struct {
	DB      *sql.DB
	Dialect Dialect
	Table   string
	Logger  *zap.Logger
}

// OpenSQLStore opens and pings a database/sql event store.
func OpenSQLStore(ctx context.Context, storeType, dsn string, log *zap.Logger) (*SQLStore, error) {
	dialect, driver, err := ParseDialect(storeType)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open event store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping event store: %w", err)
	}

	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	return &SQLStore{DB: db, Dialect: dialect, Table: "events", Logger: log}, nil
}

func (s *SQLStore) Close() error {
	return s.DB.Close()
}

// EnsureSchema creates the events table when missing.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	account_id VARCHAR(64) NOT NULL,
	device_id VARCHAR(64) NOT NULL,
	event_time BIGINT NOT NULL,
	status_code INTEGER NOT NULL,
	latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
	gps_valid BOOLEAN NOT NULL DEFAULT FALSE,
	speed_kph DOUBLE PRECISION NOT NULL DEFAULT 0,
	heading DOUBLE PRECISION NOT NULL DEFAULT 0,
	altitude DOUBLE PRECISION NOT NULL DEFAULT 0,
	odometer_km DOUBLE PRECISION NOT NULL DEFAULT 0,
	driver_id VARCHAR(64) NOT NULL DEFAULT '',
	geozone_id VARCHAR(64) NOT NULL DEFAULT '',
	address VARCHAR(255) NOT NULL DEFAULT ''
)`, s.table())
	_, err := s.DB.ExecContext(ctx, ddl)
	return err
}

// Insert writes records in one transaction.
func (s *SQLStore) Insert(ctx context.Context, records ...Record) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	b := s.newBuilder()
	marks := make([]string, 14)
	for i := range marks {
		marks[i] = b.next()
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.table(), eventColumns, strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx, r.AccountID, r.DeviceID, r.Timestamp, r.StatusCode,
			r.Latitude, r.Longitude, r.GPSValid, r.SpeedKPH, r.Heading, r.Altitude,
			r.OdometerKM, r.DriverID, r.GeozoneID, r.Address)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) RangeEvents(ctx context.Context, q RangeQuery, h Handler) ([]*Record, error) {
	query, args, err := s.buildRangeQuery(q)
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Debug("Event range query",
			zap.String("sql", query),
			zap.Int("args", len(args)),
			zap.String("limit", limitLabel(q)))
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec := &Record{}
		if err := rows.Scan(&rec.AccountID, &rec.DeviceID, &rec.Timestamp, &rec.StatusCode,
			&rec.Latitude, &rec.Longitude, &rec.GPSValid, &rec.SpeedKPH, &rec.Heading,
			&rec.Altitude, &rec.OdometerKM, &rec.DriverID, &rec.GeozoneID, &rec.Address); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return deliver(orderForDelivery(records, q), h), nil
}

func (s *SQLStore) CountEvents(ctx context.Context, q RangeQuery) (int64, error) {
	query, args, err := s.buildCountQuery(q)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.DB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return clampCount(n, q), nil
}

func (s *SQLStore) buildRangeQuery(q RangeQuery) (string, []any, error) {
	where, args, err := s.buildWhere(q)
	if err != nil {
		return "", nil, err
	}
	dir := "ASC"
	if q.fetchDescending() {
		dir = "DESC"
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY event_time %s", eventColumns, s.table(), where, dir)
	if q.Limit >= 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	return query, args, nil
}

func (s *SQLStore) buildCountQuery(q RangeQuery) (string, []any, error) {
	where, args, err := s.buildWhere(q)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", s.table(), where), args, nil
}

func (s *SQLStore) buildWhere(q RangeQuery) (string, []any, error) {
	b := s.newBuilder()
	clauses := []string{"account_id = " + b.bind(q.AccountID)}
	if q.DeviceID != "" {
		clauses = append(clauses, "device_id = "+b.bind(q.DeviceID))
	}
	if q.Filter != nil {
		col, ok := filterColumns[q.Filter.Field]
		if !ok {
			return "", nil, fmt.Errorf("unsupported event filter field %q", q.Filter.Field)
		}
		clauses = append(clauses, col+" = "+b.bind(q.Filter.Value))
	}
	if q.TimeStart > 0 {
		clauses = append(clauses, "event_time >= "+b.bind(q.TimeStart))
	}
	if q.TimeEnd > 0 {
		clauses = append(clauses, "event_time <= "+b.bind(q.TimeEnd))
	}
	if len(q.StatusCodes) > 0 {
		marks := make([]string, len(q.StatusCodes))
		for i, code := range q.StatusCodes {
			marks[i] = b.bind(code)
		}
		clauses = append(clauses, "status_code IN ("+strings.Join(marks, ", ")+")")
	}
	if q.ValidGPSRequired {
		clauses = append(clauses, "gps_valid = "+b.bind(true))
	}
	if w := strings.TrimSpace(q.Where); w != "" {
		clauses = append(clauses, "("+w+")")
	}
	return strings.Join(clauses, " AND "), b.args, nil
}

func (s *SQLStore) table() string {
	if s.Table == "" {
		return "events"
	}
	return s.Table
}

func (s *SQLStore) newBuilder() *argBuilder {
	return &argBuilder{dialect: s.Dialect}
}

type argBuilder struct {
	dialect Dialect
	args    []any
	n       int
}

func (b *argBuilder) next() string {
	b.n++
	if b.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", b.n)
	}
	return "?"
}

func (b *argBuilder) bind(v any) string {
	b.args = append(b.args, v)
	return b.next()
}

// limitLabel is used in logs.
func limitLabel(q RangeQuery) string {
	if q.Limit < 0 {
		return "none"
	}
	if q.LimitType == constraint.LimitLast {
		return fmt.Sprintf("last %d", q.Limit)
	}
	return fmt.Sprintf("first %d", q.Limit)
}
