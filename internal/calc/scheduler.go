package calc

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// Scheduler runs every registered, enabled, Scheduled-trigger definition on
// a fixed interval via gocron, the same scheduling library the teacher
// wires up for its own periodic tasks.
type Scheduler struct {
	engine   *Engine
	gocron   gocron.Scheduler
	interval time.Duration
	log      logrus.FieldLogger
	jobs     map[string]gocron.Job
}

// NewScheduler builds a Scheduler; interval is how often each scheduled
// definition is re-evaluated (there is no per-definition cron expression
// in the source schema, only a Scheduled/Manual trigger flag).
func NewScheduler(e *Engine, interval time.Duration, log logrus.FieldLogger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{engine: e, gocron: s, interval: interval, log: log, jobs: make(map[string]gocron.Job)}, nil
}

// Start schedules a job for every currently-registered definition whose
// Trigger is Scheduled, then starts the underlying gocron scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, def := range s.engine.Registry.List() {
		if def.Trigger != TriggerScheduled || !def.Enabled {
			continue
		}
		if err := s.scheduleOne(ctx, def.ID); err != nil {
			return err
		}
	}
	s.gocron.Start()
	return nil
}

func (s *Scheduler) scheduleOne(ctx context.Context, id string) error {
	job, err := s.gocron.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			result, err := s.engine.ExecuteCalculation(ctx, id)
			if err != nil {
				s.log.WithField("calculation_id", id).WithError(err).Warn("scheduled calculation rejected")
				return
			}
			if result.Status == StatusError {
				s.log.WithField("calculation_id", id).WithField("error", result.Error).Warn("scheduled calculation failed")
			}
		}),
	)
	if err != nil {
		return err
	}
	s.jobs[id] = job
	return nil
}

// Stop tears down the gocron scheduler; outstanding job executions are
// allowed to finish.
func (s *Scheduler) Stop() error {
	return s.gocron.Shutdown()
}
