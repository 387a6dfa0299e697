// Package state records schema synchronizations of polyglot entities: one
// run per migrate invocation and the DDL fingerprint each entity was
// created with, so later runs can report drift.
package state

import (
	"context"
	"time"
)

// RunStatus is the outcome of a sync run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one schema synchronization against a target.
type Run struct {
	ID          string
	Target      string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// EntityRecord is the last synchronized state of an entity.
type EntityRecord struct {
	Target           string
	Name             string
	SharedTable      string
	TranslationTable string
	Fingerprint      string
	RunID            string
	SyncedAt         time.Time
}

// Drift describes an entity whose current DDL differs from the recorded one.
type Drift struct {
	Name     string
	Recorded string
	Current  string
}

// Store persists sync runs and entity fingerprints.
type Store interface {
	Open(path string) error
	Close() error
	Migrate(ctx context.Context) error

	CreateRun(ctx context.Context, target string) (*Run, error)
	CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error
	GetRun(ctx context.Context, id string) (*Run, error)
	LatestRun(ctx context.Context, target string) (*Run, error)

	RecordEntity(ctx context.Context, rec EntityRecord) error
	Entity(ctx context.Context, target, name string) (*EntityRecord, error)
	Entities(ctx context.Context, target string) ([]EntityRecord, error)
}

var _ Store = (*SQLiteStore)(nil)
