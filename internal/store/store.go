// Package store reads the water value database, a static SQLite file with
// the screening, classification and water_values tables.
//
// The reporting pipeline never writes to the store: Open uses a read-only
// connection and every column is returned as nullable text so that the
// derivation stage decides how values parse. Stages open the store, read
// what they need and close it again; no handle outlives a stage.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"

	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/energy-modelling-hub/water-value-database/internal/errors"
	"github.com/energy-modelling-hub/water-value-database/internal/infrastructure"
	"github.com/energy-modelling-hub/water-value-database/pkg/contracts/domain"
)

// Store is a read-only handle on the water value database
type Store struct {
	db      *sql.DB
	path    string
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for read diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics counts rows read into the given instruments
func WithMetrics(metrics *infrastructure.PipelineMetrics) Option {
	return func(s *Store) {
		s.metrics = metrics
	}
}

// Open opens the store at path read-only. A missing file is reported as
// ErrStoreNotFound naming the path.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, apperrors.ErrStoreNotFound.WithCause(err).WithContext("path", path)
	}

	s := &Store{path: path}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = infrastructure.WithComponent(s.logger, "store")

	db, err := sql.Open("sqlite3", readOnlyDSN(path))
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open store", err).WithContext("path", path)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError("failed to open store", err).WithContext("path", path)
	}
	s.db = db

	s.logger.DebugContext(ctx, "Store opened", slog.String("path", path))
	return s, nil
}

// readOnlyDSN builds a SQLite URI that opens path without write access
func readOnlyDSN(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path), RawQuery: "mode=ro"}
	return u.String()
}

// Path returns the file the store was opened from
func (s *Store) Path() string {
	return s.path
}

// ReadTable reads one of the three known tables with every column as
// nullable text, in storage column order and rowid row order.
func (s *Store) ReadTable(ctx context.Context, name string) (*domain.Table, error) {
	if !slices.Contains(domain.TableNames, name) {
		return nil, apperrors.ErrUnknownTable.WithCause(fmt.Errorf("table %q", name)).WithContext("table", name)
	}

	// name was checked against the fixed table names above.
	query := fmt.Sprintf(`SELECT * FROM "%s" ORDER BY rowid`, name)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to query table", err).WithContext("table", name)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read columns", err).WithContext("table", name)
	}

	var data []domain.Row
	scan := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range scan {
		dest[i] = &scan[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, apperrors.NewStorageError("failed to scan row", err).
				WithContext("table", name).
				WithContext("row", len(data))
		}
		row := make(domain.Row, len(columns))
		for i, v := range scan {
			row[i] = domain.Value{String: v.String, Valid: v.Valid}
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("failed to iterate rows", err).WithContext("table", name)
	}

	s.metrics.AddRowsRead(ctx, name, len(data))
	s.logger.DebugContext(ctx, "Table read",
		slog.String("table", name),
		slog.Int("columns", len(columns)),
		slog.Int("rows", len(data)))

	return domain.NewTable(name, columns, data), nil
}

// ReadDataset reads all three tables
func (s *Store) ReadDataset(ctx context.Context) (*domain.Dataset, error) {
	ds := &domain.Dataset{}
	for _, name := range domain.TableNames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := s.ReadTable(ctx, name)
		if err != nil {
			return nil, err
		}
		switch name {
		case domain.TableScreening:
			ds.Screening = t
		case domain.TableClassification:
			ds.Classification = t
		case domain.TableWaterValues:
			ds.WaterValues = t
		}
	}
	return ds, nil
}

// Close releases the database handle
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// LoadDataset opens the store, reads every table and closes it again.
func LoadDataset(ctx context.Context, path string, opts ...Option) (*domain.Dataset, error) {
	s, err := Open(ctx, path, opts...)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	return s.ReadDataset(ctx)
}
