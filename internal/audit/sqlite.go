package audit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteRecorder persists records in SQLite via GORM using
// modernc.org/sqlite (pure Go, no CGO) through the glebarez driver.
// Append-only at the interface level: no update or delete methods exist
// on this type; retention pruning lives in Pruner.
type SQLiteRecorder struct {
	db     *gorm.DB
	logger *slog.Logger
}

// TableName keeps the SQLite table name stable across GORM versions.
func (Record) TableName() string { return "audit_records" }

// OpenSQLite opens (or creates) the audit database and migrates the
// records table. WAL journaling is enabled for concurrent readers.
func OpenSQLite(path string, slogger *slog.Logger) (*SQLiteRecorder, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite audit path is required")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating audit database directory %s: %w", dir, err)
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)", path)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrating audit schema: %w", err)
	}

	slogger.Info("sqlite audit store opened", slog.String("path", path))
	return &SQLiteRecorder{db: db, logger: slogger}, nil
}

// Record inserts a single record. SQLite serializes concurrent writers
// itself, so no additional locking is needed here.
func (r *SQLiteRecorder) Record(ctx context.Context, rec Record) error {
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("appending audit record: %w", err)
	}
	return nil
}

// Query returns records newest first. If program is non-empty, filters
// to that program. Limit defaults to 100.
func (r *SQLiteRecorder) Query(ctx context.Context, program string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	q := r.db.WithContext(ctx).Order("timestamp DESC").Limit(limit)
	if program != "" {
		q = q.Where("program = ?", program)
	}
	var records []Record
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("querying audit records: %w", err)
	}
	return records, nil
}

// PruneBefore deletes records older than the cutoff and returns the
// number removed. Called only by the retention Pruner; the Recorder
// interface itself stays append-only.
func (r *SQLiteRecorder) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&Record{})
	if res.Error != nil {
		return 0, fmt.Errorf("pruning audit records: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Close closes the underlying database connection.
func (r *SQLiteRecorder) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
