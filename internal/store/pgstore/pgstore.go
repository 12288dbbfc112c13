// Package pgstore implements store.Store on top of Postgres via gorm,
// following the SKIP-LOCKED-claim repository style this module's worker
// pool is grounded on, minus the locking itself: puts here are idempotent
// upserts keyed by the tuple the caller supplies, and nothing requires
// row-level locking since the orchestrator never issues two puts for the
// same tuple concurrently.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/resflow/forward-runner/internal/rundesc"
	"github.com/resflow/forward-runner/internal/store"
)

type nodeValueRow struct {
	Key        string `gorm:"column:key;primaryKey"`
	ReportStep int    `gorm:"column:report_step;primaryKey"`
	Iens       int    `gorm:"column:iens;primaryKey"`
	State      int    `gorm:"column:state;primaryKey"`
	Data       []byte `gorm:"column:data"`
	UpdatedAt  time.Time
}

func (nodeValueRow) TableName() string { return "node_values" }

type restartKeywordRow struct {
	ReportStep int            `gorm:"column:report_step;primaryKey"`
	Iens       int            `gorm:"column:iens;primaryKey"`
	Keywords   datatypes.JSON `gorm:"column:keywords"`
	UpdatedAt  time.Time
}

func (restartKeywordRow) TableName() string { return "restart_keyword_lists" }

type simTimeRow struct {
	Iens      int            `gorm:"column:iens;primaryKey"`
	Times     datatypes.JSON `gorm:"column:times"`
	UpdatedAt time.Time
}

func (simTimeRow) TableName() string { return "sim_times" }

// Store is a Postgres-backed store.Store.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// New wraps an already-connected gorm.DB. Migrations (AutoMigrate against
// the three row types above) are the caller's responsibility, mirroring
// how the teacher's repository layer never owns schema management itself.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) PutNode(ctx context.Context, key string, reportStep, iens int, state rundesc.State, data []byte) error {
	row := nodeValueRow{Key: key, ReportStep: reportStep, Iens: iens, State: int(state), Data: data, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}, {Name: "report_step"}, {Name: "iens"}, {Name: "state"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (s *Store) GetNode(ctx context.Context, key string, reportStep, iens int, state rundesc.State) ([]byte, error) {
	var row nodeValueRow
	err := s.db.WithContext(ctx).
		Where("key = ? AND report_step = ? AND iens = ? AND state = ?", key, reportStep, iens, int(state)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.Data, nil
}

func (s *Store) PutRestartKeywords(ctx context.Context, reportStep, iens int, keys []string) error {
	encoded, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	row := restartKeywordRow{ReportStep: reportStep, Iens: iens, Keywords: datatypes.JSON(encoded), UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "report_step"}, {Name: "iens"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (s *Store) GetRestartKeywords(ctx context.Context, reportStep, iens int) ([]string, error) {
	var row restartKeywordRow
	err := s.db.WithContext(ctx).
		Where("report_step = ? AND iens = ?", reportStep, iens).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var keys []string
	if err := json.Unmarshal(row.Keywords, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) PutSimTimes(ctx context.Context, iens int, times map[int]time.Time) error {
	encoded, err := json.Marshal(times)
	if err != nil {
		return err
	}
	row := simTimeRow{Iens: iens, Times: datatypes.JSON(encoded), UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "iens"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (s *Store) GetSimTimes(ctx context.Context, iens int) (map[int]time.Time, error) {
	var row simTimeRow
	err := s.db.WithContext(ctx).Where("iens = ?", iens).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var times map[int]time.Time
	if err := json.Unmarshal(row.Times, &times); err != nil {
		return nil, err
	}
	return times, nil
}
