package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestRunsOfSameJobNeverOverlap(t *testing.T) {
	var running, maxRunning, runs int32

	s := New(testLogger())
	s.Schedule("slow", 10*time.Millisecond, func(ctx context.Context) error {
		cur := atomic.AddInt32(&running, 1)
		defer atomic.AddInt32(&running, -1)

		for {
			prev := atomic.LoadInt32(&maxRunning)
			if cur <= prev || atomic.CompareAndSwapInt32(&maxRunning, prev, cur) {
				break
			}
		}

		atomic.AddInt32(&runs, 1)
		time.Sleep(35 * time.Millisecond) // three ticks pass per run
		return nil
	})

	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	require.EqualValues(t, 1, atomic.LoadInt32(&maxRunning), "two runs of the same job overlapped")
	require.GreaterOrEqual(t, atomic.LoadInt32(&runs), int32(2))
}

func TestStopBlocksUntilLoopsExit(t *testing.T) {
	var finished atomic.Bool

	s := New(testLogger())
	s.Schedule("one", time.Hour, func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	})

	s.Start()
	time.Sleep(10 * time.Millisecond) // the immediate run is in flight
	s.Stop()

	require.True(t, finished.Load(), "Stop returned while a run was still in flight")
}

func TestStopDoesNotCancelInFlightRun(t *testing.T) {
	var interrupted, completed atomic.Bool

	s := New(testLogger())
	s.Schedule("publishing", time.Hour, func(ctx context.Context) error {
		// Stands in for an external call bounded by the run context, like
		// a platform publish under context.WithTimeout.
		select {
		case <-ctx.Done():
			interrupted.Store(true)
		case <-time.After(100 * time.Millisecond):
			completed.Store(true)
		}
		return nil
	})

	s.Start()
	time.Sleep(10 * time.Millisecond) // the immediate run is in flight
	s.Stop()

	require.False(t, interrupted.Load(), "Stop cancelled an in-flight external call")
	require.True(t, completed.Load())
}

func TestActionErrorDoesNotStopLoop(t *testing.T) {
	var runs int32

	s := New(testLogger())
	s.Schedule("flaky", 10*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return errors.New("boom")
	})

	s.Start()
	time.Sleep(60 * time.Millisecond)
	s.Stop()

	require.GreaterOrEqual(t, atomic.LoadInt32(&runs), int32(3))
}

func TestSlowJobDoesNotDelayOtherJobs(t *testing.T) {
	var fastRuns int32

	s := New(testLogger())
	s.Schedule("slow", 20*time.Millisecond, func(ctx context.Context) error {
		time.Sleep(100 * time.Millisecond)
		return nil
	})
	s.Schedule("fast", 10*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&fastRuns, 1)
		return nil
	})

	s.Start()
	time.Sleep(150 * time.Millisecond)
	s.Stop()

	require.GreaterOrEqual(t, atomic.LoadInt32(&fastRuns), int32(5))
}

func TestScheduleAfterStartIgnored(t *testing.T) {
	var runs int32

	s := New(testLogger())
	s.Schedule("first", time.Hour, func(ctx context.Context) error { return nil })
	s.Start()

	s.Schedule("late", time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})

	time.Sleep(30 * time.Millisecond)
	s.Stop()

	require.EqualValues(t, 0, atomic.LoadInt32(&runs))
}
