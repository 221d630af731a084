package worker

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"rollcall/models"
	"rollcall/scheduler"
)

// PollWorker keeps every active campaign's look-ahead buffer topped up.
// It sweeps once at startup and then on a fixed interval. The caller is
// responsible for ensuring only one process instance runs it (see
// utils.AcquireSweepLock).
type PollWorker struct {
	DB        *gorm.DB
	Scheduler *scheduler.Service
	Logger    *log.Logger
	Interval  time.Duration
}

func NewPollWorker(db *gorm.DB, sched *scheduler.Service, logger *log.Logger, interval time.Duration) *PollWorker {
	return &PollWorker{
		DB:        db,
		Scheduler: sched,
		Logger:    logger,
		Interval:  interval,
	}
}

func (pw *PollWorker) Start(ctx context.Context) {
	pw.Logger.Println("Poll worker started")
	pw.sweep()

	ticker := time.NewTicker(pw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			pw.Logger.Println("Poll worker shutting down...")
			return
		case <-ticker.C:
			pw.sweep()
		}
	}
}

func (pw *PollWorker) sweep() {
	var campaigns []models.Campaign
	if err := pw.DB.Where("is_active = ?", true).Find(&campaigns).Error; err != nil {
		pw.Logger.Printf("Error fetching active campaigns: %v", err)
		return
	}

	for _, campaign := range campaigns {
		if err := pw.Scheduler.EnsureLookahead(campaign.ID); err != nil {
			pw.Logger.Printf("Error generating polls for campaign %d: %v", campaign.ID, err)
		}
	}
}
