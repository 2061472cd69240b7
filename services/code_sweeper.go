package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/yeremiapane/roomturn/database"
	"github.com/yeremiapane/roomturn/utils"
)

// DefaultSweepSchedule runs the sweep at the top of every hour.
const DefaultSweepSchedule = "@hourly"

// CodeSweeper deletes registration codes that expired without being used.
type CodeSweeper struct {
	Store    *database.Store
	Schedule string
	Timeout  time.Duration

	c   *cron.Cron
	now func() time.Time
}

func NewCodeSweeper(store *database.Store, schedule string) *CodeSweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &CodeSweeper{
		Store:    store,
		Schedule: schedule,
		Timeout:  30 * time.Second,
		now:      time.Now,
	}
}

func (cs *CodeSweeper) Start() error {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cs.c = cron.New(cron.WithParser(parser))
	if _, err := cs.c.AddFunc(cs.Schedule, cs.run); err != nil {
		return fmt.Errorf("schedule code sweep %q: %w", cs.Schedule, err)
	}
	cs.c.Start()
	utils.InfoLogger.Infof("Registration code sweep scheduled (%s)", cs.Schedule)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (cs *CodeSweeper) Stop() {
	if cs.c == nil {
		return
	}
	<-cs.c.Stop().Done()
}

func (cs *CodeSweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), cs.Timeout)
	defer cancel()
	if _, err := cs.Sweep(ctx); err != nil {
		utils.ErrorLogger.WithError(err).Error("registration code sweep failed")
	}
}

// Sweep deletes every unused code whose expiry has passed and returns how many were removed.
func (cs *CodeSweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := cs.Store.PurgeExpiredCodes(ctx, cs.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		utils.InfoLogger.WithField("deleted", n).Info("expired registration codes removed")
	}
	return n, nil
}
