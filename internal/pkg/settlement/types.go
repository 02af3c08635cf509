package settlement

import (
	"errors"
	"time"
)

// DefaultGraceMinutes is how long after the activity end a settlement run is
// refused, giving late payment notifications time to land.
const DefaultGraceMinutes = 30

var (
	ErrActivityNotFound = errors.New("activity not found")
	ErrTooEarly         = errors.New("too early to settle")
)

// RunParams selects which paid orders of an activity to settle.
type RunParams struct {
	ActivityID        uint       `json:"activity_id" validate:"required"`
	Start             *time.Time `json:"start,omitempty"`
	End               *time.Time `json:"end,omitempty"`
	AfterEndedMinutes int        `json:"after_ended_minutes"`
	DryRun            bool       `json:"dry_run"`
}

// RunResult is the job summary returned to the caller and persisted on the
// job row.
type RunResult struct {
	JobID      uint `json:"job_id"`
	ActivityID uint `json:"activity_id"`
	Processed  int  `json:"processed"`
	Skipped    int  `json:"skipped"`
	Errors     int  `json:"errors"`
	DryRun     bool `json:"dry_run"`
}
