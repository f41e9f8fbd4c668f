// Package scheduler drives the periodic scan and speed test jobs.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/user/nettools/internal/model"
	"github.com/user/nettools/internal/util"
)

var (
	// ErrScanInProgress reports a scan run guard conflict.
	ErrScanInProgress = errors.New("scan already in progress")
	// ErrSpeedTestInProgress reports a speed test run guard conflict.
	ErrSpeedTestInProgress = errors.New("speed test already in progress")
)

// initialDelay postpones the first run of a newly enabled job so startup
// settles before tools fire.
const initialDelay = 5 * time.Second

// SettingsSource supplies the runtime settings the jobs are built from.
type SettingsSource interface {
	Get(ctx context.Context) (*model.Settings, error)
}

// guard is a non-blocking run lock for one probe kind. A busy guard means
// skip, never queue.
type guard struct {
	mu   sync.Mutex
	busy bool
}

func (g *guard) tryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		return false
	}
	g.busy = true
	return true
}

func (g *guard) release() {
	g.mu.Lock()
	g.busy = false
	g.mu.Unlock()
}

func (g *guard) inProgress() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}

type job struct {
	name     string
	enabled  bool
	interval time.Duration
	nextRun  time.Time
	lastRun  time.Time
	lastErr  error
}

// JobStatus describes one job for the status endpoints.
type JobStatus struct {
	Enabled   bool      `json:"enabled"`
	Running   bool      `json:"in_progress"`
	LastRun   time.Time `json:"last_run"`
	NextRun   time.Time `json:"next_run"`
	LastError string    `json:"last_error,omitempty"`
}

// Scheduler runs the scan and speed test jobs on the intervals stored in
// settings. The run guards are shared with on-demand triggers so a scheduled
// run and a web-triggered run can never overlap.
type Scheduler struct {
	settings  SettingsSource
	runScan   func(ctx context.Context) error
	runSpeed  func(ctx context.Context) error
	scanGuard guard
	spdGuard  guard

	mu       sync.Mutex
	scanJob  job
	speedJob job
}

// New creates a scheduler. The runners perform one complete scan or speed
// test; the scheduler owns only timing and mutual exclusion.
func New(settings SettingsSource, runScan, runSpeed func(ctx context.Context) error) *Scheduler {
	return &Scheduler{
		settings: settings,
		runScan:  runScan,
		runSpeed: runSpeed,
		scanJob:  job{name: "scan"},
		speedJob: job{name: "speedtest"},
	}
}

// Rebuild re-reads the settings and reprograms both jobs. Calling it again
// with unchanged settings changes nothing.
func (s *Scheduler) Rebuild(ctx context.Context) error {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	applyJob(&s.scanJob, settings.AutoNetworkScan, time.Duration(settings.NetworkScanFrequency)*time.Minute)
	applyJob(&s.speedJob, settings.AutoSpeedTest, time.Duration(settings.SpeedTestFrequency)*time.Minute)
	return nil
}

func applyJob(j *job, enabled bool, interval time.Duration) {
	if interval <= 0 {
		enabled = false
	}
	if j.enabled == enabled && j.interval == interval {
		return
	}

	j.enabled = enabled
	j.interval = interval
	if enabled {
		j.nextRun = time.Now().Add(initialDelay)
		util.Info().Str("job", j.name).Dur("interval", interval).Msg("job scheduled")
	} else {
		util.Info().Str("job", j.name).Msg("job disabled")
	}
}

// Run drives the jobs until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	util.Info().Msg("scheduler started")
	for {
		select {
		case <-ctx.Done():
			util.Info().Msg("scheduler stopping")
			return
		case now := <-ticker.C:
			s.checkJobs(ctx, now)
		}
	}
}

func (s *Scheduler) checkJobs(ctx context.Context, now time.Time) {
	if s.dueAndReschedule(&s.scanJob, now) {
		go s.runGuarded(ctx, &s.scanGuard, s.scanJob.name, s.runScan)
	}
	if s.dueAndReschedule(&s.speedJob, now) {
		go s.runGuarded(ctx, &s.spdGuard, s.speedJob.name, s.runSpeed)
	}
}

func (s *Scheduler) dueAndReschedule(j *job, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !j.enabled || now.Before(j.nextRun) {
		return false
	}
	j.lastRun = now
	j.nextRun = now.Add(j.interval)
	return true
}

// runGuarded executes one scheduled run. A busy guard means an on-demand run
// is active, so the tick is skipped. Errors are recorded and swallowed;
// scheduled failures must not stop the loop.
func (s *Scheduler) runGuarded(ctx context.Context, g *guard, name string, run func(ctx context.Context) error) {
	if !g.tryAcquire() {
		util.Debug().Str("job", name).Msg("skipping tick, run in progress")
		return
	}
	defer g.release()

	if err := run(ctx); err != nil {
		s.recordError(name, err)
		util.Warn().Err(err).Str("job", name).Msg("scheduled run failed")
		return
	}
	s.recordError(name, nil)
}

func (s *Scheduler) recordError(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == s.scanJob.name {
		s.scanJob.lastErr = err
	} else {
		s.speedJob.lastErr = err
	}
}

// AcquireScan claims the scan guard for an on-demand run. The caller must
// call ReleaseScan when done.
func (s *Scheduler) AcquireScan() error {
	if !s.scanGuard.tryAcquire() {
		return ErrScanInProgress
	}
	return nil
}

// ReleaseScan releases the scan guard.
func (s *Scheduler) ReleaseScan() { s.scanGuard.release() }

// ScanInProgress reports whether a scan run holds the guard.
func (s *Scheduler) ScanInProgress() bool { return s.scanGuard.inProgress() }

// AcquireSpeedTest claims the speed test guard for an on-demand run. The
// caller must call ReleaseSpeedTest when done.
func (s *Scheduler) AcquireSpeedTest() error {
	if !s.spdGuard.tryAcquire() {
		return ErrSpeedTestInProgress
	}
	return nil
}

// ReleaseSpeedTest releases the speed test guard.
func (s *Scheduler) ReleaseSpeedTest() { s.spdGuard.release() }

// SpeedTestInProgress reports whether a speed test run holds the guard.
func (s *Scheduler) SpeedTestInProgress() bool { return s.spdGuard.inProgress() }

// ScanStatus describes the scan job.
func (s *Scheduler) ScanStatus() JobStatus {
	return s.jobStatus(&s.scanJob, &s.scanGuard)
}

// SpeedTestStatus describes the speed test job.
func (s *Scheduler) SpeedTestStatus() JobStatus {
	return s.jobStatus(&s.speedJob, &s.spdGuard)
}

func (s *Scheduler) jobStatus(j *job, g *guard) JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := JobStatus{
		Enabled: j.enabled,
		Running: g.inProgress(),
		LastRun: j.lastRun,
		NextRun: j.nextRun,
	}
	if j.lastErr != nil {
		status.LastError = j.lastErr.Error()
	}
	return status
}
