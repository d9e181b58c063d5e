package clock

import (
	"sync"
	"time"
)

// Clock отделяет код от пакета time: в продакшене Real(),
// в тестах Fake() с ручным управлением временем.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (rt *realTicker) C() <-chan time.Time { return rt.t.C }
func (rt *realTicker) Stop()               { rt.t.Stop() }

// FakeClock - детерминированное время для тестов.
// Advance сдвигает часы и рассылает тик всем активным тикерам.
type FakeClock struct {
	mtx     sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func Fake(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (f *FakeClock) Now() time.Time {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.now
}

func (f *FakeClock) NewTicker(d time.Duration) Ticker {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	ft := &fakeTicker{ch: make(chan time.Time, 1), clock: f}
	f.tickers = append(f.tickers, ft)
	return ft
}

func (f *FakeClock) Advance(d time.Duration) {
	f.mtx.Lock()
	f.now = f.now.Add(d)
	now := f.now
	tickers := make([]*fakeTicker, len(f.tickers))
	copy(tickers, f.tickers)
	f.mtx.Unlock()

	for _, ft := range tickers {
		if ft.stopped() {
			continue
		}
		// тик не блокирует Advance, если потребитель отстал
		select {
		case ft.ch <- now:
		default:
		}
	}
}

type fakeTicker struct {
	ch    chan time.Time
	clock *FakeClock

	mtx  sync.Mutex
	done bool
}

func (ft *fakeTicker) C() <-chan time.Time { return ft.ch }

func (ft *fakeTicker) Stop() {
	ft.mtx.Lock()
	defer ft.mtx.Unlock()
	ft.done = true
}

func (ft *fakeTicker) stopped() bool {
	ft.mtx.Lock()
	defer ft.mtx.Unlock()
	return ft.done
}
