package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
	now  func() time.Time
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("db path required")
	}
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&DecisionTally{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	return &Database{gorm: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordDecision increments the tally for level on the current UTC day.
func (d *Database) RecordDecision(level, decision string) error {
	if d == nil {
		return errors.New("database is nil")
	}
	level = strings.ToUpper(strings.TrimSpace(level))
	if level == "" {
		return errors.New("level is required")
	}
	now := d.now()
	row := &DecisionTally{
		Day:      DayOf(now),
		Level:    level,
		Decision: decision,
		Total:    1,
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "day"}, {Name: "level"}},
		DoUpdates: clause.Assignments(map[string]any{
			"total":      gorm.Expr("decision_tallies.total + 1"),
			"decision":   decision,
			"updated_at": now,
		}),
	}).Create(row).Error
}

// ListTallies returns tallies for days on or after since, newest day first.
func (d *Database) ListTallies(since time.Time) ([]DecisionTally, error) {
	if d == nil {
		return nil, errors.New("database is nil")
	}
	var rows []DecisionTally
	err := d.gorm.Model(&DecisionTally{}).
		Where("day >= ?", DayOf(since)).
		Order("day DESC").
		Order("level ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list tallies: %w", err)
	}
	return rows, nil
}

// CountDecisions returns the total number of recorded decisions.
func (d *Database) CountDecisions() (int64, error) {
	var total int64
	if err := d.gorm.Model(&DecisionTally{}).Select("COALESCE(SUM(total), 0)").Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
