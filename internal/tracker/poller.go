package tracker

import (
	"sync"
	"time"
)

// Task is a repeating job returned by a Scheduler.
type Task interface {
	// Stop cancels the task. When Stop returns, any in-flight run has
	// completed and no further run will start. Stop is idempotent.
	Stop()
}

// Scheduler runs fn every d until the returned Task is stopped. Runs of the
// same task never overlap.
type Scheduler interface {
	Every(d time.Duration, fn func()) Task
}

// TickerScheduler is a Scheduler backed by time.Ticker, one goroutine per
// task. Ticks that arrive while fn is still running are dropped.
type TickerScheduler struct{}

func (TickerScheduler) Every(d time.Duration, fn func()) Task {
	t := &tickerTask{
		ticker: time.NewTicker(d),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go t.run(fn)
	return t
}

type tickerTask struct {
	ticker *time.Ticker
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (t *tickerTask) run(fn func()) {
	defer close(t.done)
	defer t.ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-t.ticker.C:
			// A stop racing with a tick wins.
			select {
			case <-t.stop:
				return
			default:
			}
			fn()
		}
	}
}

func (t *tickerTask) Stop() {
	t.once.Do(func() { close(t.stop) })
	<-t.done
}
