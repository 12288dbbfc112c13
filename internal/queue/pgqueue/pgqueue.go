// Package pgqueue implements queue.Queue as a durable, Postgres-backed job
// status tracker, following the same gorm-over-context idiom as
// store/pgstore — giving the worker pool a crash-safe place to track
// per-iens job status across process restarts.
package pgqueue

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/resflow/forward-runner/internal/queue"
)

type statusRow struct {
	Iens        int `gorm:"column:iens;primaryKey"`
	Status      int
	RunPath     string
	EclBase     string
	SubmittedAt *time.Time
	SimStartAt  *time.Time
	UpdatedAt   time.Time
}

func (statusRow) TableName() string { return "job_queue_status" }

type Queue struct {
	db *gorm.DB
}

var _ queue.Queue = (*Queue)(nil)

func New(db *gorm.DB) *Queue {
	return &Queue{db: db}
}

func (q *Queue) upsertStatus(ctx context.Context, iens int, status queue.Status, mutate func(*statusRow)) error {
	now := time.Now()
	var row statusRow
	err := q.db.WithContext(ctx).Where("iens = ?", iens).First(&row).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	row.Iens = iens
	row.Status = int(status)
	row.UpdatedAt = now
	if mutate != nil {
		mutate(&row)
	}
	return q.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "iens"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (q *Queue) InsertJob(ctx context.Context, iens int, runPath, eclBase string) error {
	now := time.Now()
	return q.upsertStatus(ctx, iens, queue.Submitted, func(r *statusRow) {
		r.RunPath = runPath
		r.EclBase = eclBase
		r.SubmittedAt = &now
	})
}

func (q *Queue) GetJobStatus(ctx context.Context, iens int) (queue.Status, error) {
	var row statusRow
	err := q.db.WithContext(ctx).Where("iens = ?", iens).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return queue.NotActive, nil
	}
	if err != nil {
		return queue.NotActive, err
	}
	return queue.Status(row.Status), nil
}

func (q *Queue) SetExternalLoad(ctx context.Context, iens int) error {
	return q.upsertStatus(ctx, iens, queue.Loading, nil)
}

func (q *Queue) SetLoadOK(ctx context.Context, iens int) error {
	return q.upsertStatus(ctx, iens, queue.AllOK, nil)
}

func (q *Queue) SetExternalFail(ctx context.Context, iens int) error {
	return q.upsertStatus(ctx, iens, queue.RunFail, nil)
}

func (q *Queue) SetExternalRestart(ctx context.Context, iens int) error {
	return q.upsertStatus(ctx, iens, queue.CanRestart, nil)
}

func (q *Queue) SetAllFail(ctx context.Context, iens int) error {
	return q.upsertStatus(ctx, iens, queue.AllFail, nil)
}

func (q *Queue) KillJob(ctx context.Context, iens int) (bool, error) {
	status, err := q.GetJobStatus(ctx, iens)
	if err != nil {
		return false, err
	}
	if status != queue.Running && status != queue.Submitted {
		return false, nil
	}
	if err := q.upsertStatus(ctx, iens, queue.CanKill, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (q *Queue) SimStart(ctx context.Context, iens int) (time.Time, bool, error) {
	var row statusRow
	err := q.db.WithContext(ctx).Where("iens = ?", iens).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || row.SimStartAt == nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return *row.SimStartAt, true, nil
}

func (q *Queue) SubmitTime(ctx context.Context, iens int) (time.Time, bool, error) {
	var row statusRow
	err := q.db.WithContext(ctx).Where("iens = ?", iens).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || row.SubmittedAt == nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return *row.SubmittedAt, true, nil
}
