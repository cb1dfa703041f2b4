package connectivity

import (
	"sync"
	"time"
)

// CancelFunc 取消一个已调度的任务，可重复调用。
// 使用别名，测试替身返回普通 func() 即可满足接口
type CancelFunc = func()

// Scheduler 定时能力抽象，测试中替换为可手动推进的时钟
type Scheduler interface {
	Now() time.Time
	ScheduleOnce(delay time.Duration, fn func()) CancelFunc
	ScheduleRepeating(interval time.Duration, fn func()) CancelFunc
}

// SystemScheduler 基于 time 包的实现
func SystemScheduler() Scheduler { return systemScheduler{} }

type systemScheduler struct{}

func (systemScheduler) Now() time.Time { return time.Now() }

func (systemScheduler) ScheduleOnce(delay time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(delay, fn)
	return func() { t.Stop() }
}

func (systemScheduler) ScheduleRepeating(interval time.Duration, fn func()) CancelFunc {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
