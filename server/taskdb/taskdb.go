package taskdb

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"
)

// Package taskdb is the small sqlite database that makes annotation ids and
// session progress survive restarts. Exported image/annotation ids are drawn
// from a per-key monotonic allocator here, so ids are unique across runs,
// and the current image index of each task is persisted so an interrupted
// session resumes where it left off.

type TaskDB struct {
	Log logs.Log
	DB  *gorm.DB
}

func NewTaskDB(logger logs.Log, dbFilename string) (*TaskDB, error) {
	os.MkdirAll(filepath.Dir(dbFilename), 0777)
	db, err := dbh.OpenDB(logger, dbh.MakeSqliteConfig(dbFilename), Migrations(logger), 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open task database %v: %w", dbFilename, err)
	}
	return &TaskDB{
		Log: logger,
		DB:  db,
	}, nil
}

// GenerateNewID returns the next id for the given key ("image",
// "annotation", ...). The first id of every key is 1. Runs inside tx so a
// rolled-back submit does not burn ids out of order with its records.
func (t *TaskDB) GenerateNewID(tx *gorm.DB, key string) (int64, error) {
	if err := tx.Exec("INSERT INTO id_sequence (key, next_id) VALUES ($1, 2) ON CONFLICT(key) DO UPDATE SET next_id = next_id + 1", key).Error; err != nil {
		return 0, err
	}
	next := int64(0)
	if err := tx.Raw("SELECT next_id FROM id_sequence WHERE key = $1", key).Row().Scan(&next); err != nil {
		return 0, err
	}
	return next - 1, nil
}

// Progress returns the persisted image index for a task, or 0 if the task
// has never been worked on.
func (t *TaskDB) Progress(task string) (int, error) {
	index := 0
	row := t.DB.Raw("SELECT image_index FROM task_progress WHERE task = $1", task).Row()
	if err := row.Scan(&index); err != nil {
		// No row yet means a fresh task.
		return 0, nil
	}
	return index, nil
}

func (t *TaskDB) SetProgress(task string, imageIndex int) error {
	return t.DB.Exec("INSERT INTO task_progress (task, image_index, updated_at) VALUES ($1, $2, $3) ON CONFLICT(task) DO UPDATE SET image_index = EXCLUDED.image_index, updated_at = EXCLUDED.updated_at",
		task, imageIndex, time.Now().Unix()).Error
}
