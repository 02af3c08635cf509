package models

import "time"

// Settlement job statuses.
const (
	SettlementJobPending = "pending"
	SettlementJobRunning = "running"
	SettlementJobDone    = "done"
	SettlementJobError   = "error"
)

// SettlementJob is the audit record of one batch settlement run. It is not a
// queue entry; the run executes synchronously and the row records the outcome.
type SettlementJob struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	ActivityID uint       `gorm:"not null;index" json:"activity_id"`
	Status     string     `gorm:"type:varchar(20);not null;index" json:"status"`
	DryRun     bool       `gorm:"default:false" json:"dry_run"`
	Params     string     `gorm:"type:json" json:"params"`
	Processed  int        `gorm:"not null;default:0" json:"processed"`
	Skipped    int        `gorm:"not null;default:0" json:"skipped"`
	Errors     int        `gorm:"not null;default:0" json:"errors"`
	StartedAt  *time.Time `gorm:"type:datetime" json:"started_at,omitempty"`
	FinishedAt *time.Time `gorm:"type:datetime" json:"finished_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
