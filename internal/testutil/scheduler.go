package testutil

import (
	"sort"
	"sync"
	"time"
)

// FakeScheduler 手动推进的时钟，实现 connectivity.Scheduler。
// 到期回调在 Advance 的调用 goroutine 中执行，执行时不持有内部锁，
// 回调内可以再次调度或取消定时任务。
type FakeScheduler struct {
	mu     sync.Mutex
	now    time.Time
	nextID uint64
	timers map[uint64]*fakeTimer
}

type fakeTimer struct {
	id       uint64
	at       time.Time
	interval time.Duration // 0 表示一次性
	fn       func()
}

// NewFakeScheduler 创建从 start 开始的假时钟
func NewFakeScheduler(start time.Time) *FakeScheduler {
	return &FakeScheduler{now: start, timers: make(map[uint64]*fakeTimer)}
}

// Now 当前虚拟时间
func (s *FakeScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// ScheduleOnce 在 delay 后执行一次 fn
func (s *FakeScheduler) ScheduleOnce(delay time.Duration, fn func()) func() {
	return s.add(delay, 0, fn)
}

// ScheduleRepeating 每隔 interval 执行一次 fn
func (s *FakeScheduler) ScheduleRepeating(interval time.Duration, fn func()) func() {
	if interval <= 0 {
		return func() {}
	}
	return s.add(interval, interval, fn)
}

func (s *FakeScheduler) add(delay, interval time.Duration, fn func()) func() {
	if delay < 0 {
		delay = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.timers[id] = &fakeTimer{id: id, at: s.now.Add(delay), interval: interval, fn: fn}
	return func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
	}
}

// Advance 推进虚拟时间，按到期顺序执行途经的回调
func (s *FakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		t := s.nextDueLocked(target)
		if t == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		s.now = t.at
		if t.interval > 0 {
			t.at = t.at.Add(t.interval)
		} else {
			delete(s.timers, t.id)
		}
		fn := t.fn
		s.mu.Unlock()

		fn()
	}
}

// Pending 尚未到期（或周期性）的定时任务数量
func (s *FakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// nextDueLocked 返回 target 之前最早到期的任务，同一时刻按创建顺序
func (s *FakeScheduler) nextDueLocked(target time.Time) *fakeTimer {
	due := make([]*fakeTimer, 0, len(s.timers))
	for _, t := range s.timers {
		if !t.at.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].id < due[j].id
		}
		return due[i].at.Before(due[j].at)
	})
	return due[0]
}
