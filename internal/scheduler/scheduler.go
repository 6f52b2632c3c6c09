// Package scheduler runs named recurring jobs, each on its own fixed
// cadence. Runs of the same job never overlap; jobs never affect each
// other's schedule.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"social_automation/internal/metrics"
)

type Action func(ctx context.Context) error

type job struct {
	name     string
	interval time.Duration
	action   Action
}

type Scheduler struct {
	mu       sync.Mutex
	logger   *logrus.Logger
	jobs     []job
	ctx      context.Context
	cancel   context.CancelFunc
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool
}

func New(logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		stop:   make(chan struct{}),
	}
}

// Schedule registers a job. Must be called before Start.
func (s *Scheduler) Schedule(name string, interval time.Duration, action Action) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.logger.WithField("job", name).Warn("schedule after start ignored")
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	s.jobs = append(s.jobs, job{name: name, interval: interval, action: action})
}

// Start launches one loop goroutine per registered job. Each job runs once
// immediately, then on its cadence.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true

	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(j)
	}

	s.logger.WithField("jobs", len(s.jobs)).Info("scheduler started")
}

// Stop signals every loop to finish its current run and blocks until all
// loops have exited. The action context stays live while any run is in
// flight: a publish or fetch that started before Stop completes normally.
// The context is cancelled only after the last loop has returned.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	s.cancel()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runLoop(j job) {
	defer s.wg.Done()

	s.logger.WithField("job", j.name).Info("job loop started")
	defer s.logger.WithField("job", j.name).Info("job loop stopped")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	s.runOnce(j)

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.runOnce(j)

			// A tick that fired while the action ran is discarded, not
			// queued: the next run waits for the next cadence boundary.
			select {
			case <-ticker.C:
				metrics.IncJobSkippedTick(j.name)
				s.logger.WithField("job", j.name).Debug("tick skipped, previous run too slow")
			default:
			}
		}
	}
}

// runOnce executes the action to completion. The loop itself only ever
// exits on Stop; action errors are logged and counted.
func (s *Scheduler) runOnce(j job) {
	start := time.Now()
	err := j.action(s.ctx)
	d := time.Since(start)

	metrics.IncJobRun(j.name, err)
	metrics.ObserveJobDuration(j.name, d)

	if err != nil {
		s.logger.WithError(err).WithField("job", j.name).Warn("job run failed")
		return
	}
	s.logger.WithFields(logrus.Fields{"job": j.name, "duration": d.String()}).Debug("job run ok")
}
