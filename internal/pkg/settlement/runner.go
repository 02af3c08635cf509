package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/goupclub/goup/app/models"
	"github.com/goupclub/goup/internal/pkg/points"
	"gorm.io/gorm"
)

// Runner credits settlement and referral points for the paid orders of an
// ended activity. Every credit is idempotent per (member, order, type), so a
// re-run after a crash or an overlapping window yields zero new transactions.
type Runner struct {
	repo Repository
	now  func() time.Time
}

// NewRunner creates a settlement runner from an injected repository.
func NewRunner(repo Repository) *Runner {
	return &Runner{repo: repo, now: time.Now}
}

// NewRunnerFromDB creates a settlement runner from a GORM DB handle.
func NewRunnerFromDB(db *gorm.DB) *Runner {
	return NewRunner(NewRepository(db))
}

// Run executes one settlement batch. A non-dry run is refused until the
// activity has been over for the grace period. Dry runs perform the same
// scan and counting without writing to the ledger.
func (r *Runner) Run(ctx context.Context, params RunParams) (*RunResult, error) {
	_ = ctx
	activity, err := r.repo.GetActivity(params.ActivityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}

	grace := params.AfterEndedMinutes
	if grace <= 0 {
		grace = DefaultGraceMinutes
	}
	now := r.now()
	if !params.DryRun && activity.End != nil {
		if now.Sub(*activity.End) < time.Duration(grace)*time.Minute {
			return nil, ErrTooEarly
		}
	}

	paramsJSON, _ := json.Marshal(&params)
	startedAt := now
	job := &models.SettlementJob{
		ActivityID: params.ActivityID,
		Status:     models.SettlementJobRunning,
		DryRun:     params.DryRun,
		Params:     string(paramsJSON),
		StartedAt:  &startedAt,
	}
	if err := r.repo.CreateJob(job); err != nil {
		return nil, err
	}

	orders, err := r.repo.ListPaidOrders(params.ActivityID, params.Start, params.End)
	if err != nil {
		r.finishJob(job, models.SettlementJobError)
		return nil, err
	}

	ledger := points.NewService(r.repo.Points())
	for i := range orders {
		order := &orders[i]

		settled, err := ledger.HasOrderTransaction(models.PointsTypeSettlement, order.MemberID, order.ID)
		if err != nil {
			job.Errors++
			continue
		}
		if settled {
			job.Skipped++
			continue
		}

		pts := points.PointsForAmount(order.Amount)
		if pts > 0 && !params.DryRun {
			if _, err := ledger.CreditOnce(models.PointsTypeSettlement, order.MemberID, order.ID,
				params.ActivityID, pts, "job", `{"via":"activity_end"}`); err != nil {
				job.Errors++
				continue
			}
		}

		if err := r.creditReferral(ledger, order, params); err != nil {
			log.Warnf("settlement: referral credit failed for order %d: %v", order.ID, err)
			job.Errors++
			continue
		}
		job.Processed++
	}

	r.finishJob(job, models.SettlementJobDone)
	log.Infof("settlement: activity %d job %d processed=%d skipped=%d errors=%d dry_run=%t",
		params.ActivityID, job.ID, job.Processed, job.Skipped, job.Errors, params.DryRun)
	return &RunResult{
		JobID:      job.ID,
		ActivityID: params.ActivityID,
		Processed:  job.Processed,
		Skipped:    job.Skipped,
		Errors:     job.Errors,
		DryRun:     params.DryRun,
	}, nil
}

// creditReferral pays the inviter bonus for one settled order. It is
// idempotent independently of the settlement credit: a crash between the two
// is healed by the next run.
func (r *Runner) creditReferral(ledger *points.Service, order *models.Order, params RunParams) error {
	inviterID, err := r.repo.FindInviter(order.MemberID)
	if err != nil {
		return err
	}
	if inviterID == 0 {
		return nil
	}
	credited, err := ledger.HasOrderTransaction(models.PointsTypeReferral, inviterID, order.ID)
	if err != nil || credited {
		return err
	}
	bonus := points.ReferralBonus(order.Amount)
	if bonus <= 0 || params.DryRun {
		return nil
	}
	meta := fmt.Sprintf(`{"invitee_id":%d,"ratio":"100_per_unit"}`, order.MemberID)
	_, err = ledger.CreditOnce(models.PointsTypeReferral, inviterID, order.ID,
		params.ActivityID, bonus, "job", meta)
	return err
}

func (r *Runner) finishJob(job *models.SettlementJob, status string) {
	finishedAt := r.now()
	job.Status = status
	job.FinishedAt = &finishedAt
	_ = r.repo.SaveJob(job)
}
