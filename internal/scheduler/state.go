package scheduler

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStaleState means another runner recorded the task between our read and write.
var ErrStaleState = errors.New("task state changed concurrently")

// TaskState is the single record of when a task last succeeded.
type TaskState struct {
	TaskName  string    `json:"taskName" gorm:"column:task_name;primaryKey;size:64"`
	LastRun   time.Time `json:"lastRun" gorm:"column:last_run;not null"`
	Version   int64     `json:"version" gorm:"column:version;not null;default:1"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (TaskState) TableName() string {
	return "scheduled_task_states"
}

type StateStore struct {
	db *gorm.DB
}

func NewStateStore(db *gorm.DB) *StateStore {
	return &StateStore{db: db}
}

// Get returns nil without error when the task never succeeded.
func (s *StateStore) Get(ctx context.Context, name string) (*TaskState, error) {
	var st TaskState
	err := s.db.WithContext(ctx).Where("task_name = ?", name).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *StateStore) List(ctx context.Context) ([]TaskState, error) {
	var out []TaskState
	err := s.db.WithContext(ctx).Order("task_name ASC").Find(&out).Error
	return out, err
}

// MarkRun records at as the last run. prev is the state read before running
// (nil when there was none); the write only lands if it is still current.
func (s *StateStore) MarkRun(ctx context.Context, name string, prev *TaskState, at time.Time) error {
	if prev == nil {
		res := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&TaskState{TaskName: name, LastRun: at, Version: 1})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleState
		}
		return nil
	}

	res := s.db.WithContext(ctx).
		Model(&TaskState{}).
		Where("task_name = ? AND version = ?", name, prev.Version).
		Updates(map[string]any{"last_run": at, "version": prev.Version + 1})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}
