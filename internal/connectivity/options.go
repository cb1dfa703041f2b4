package connectivity

import "time"

// Options 监控参数
type Options struct {
	CheckInterval           time.Duration // 后台轮询间隔，0 表示关闭轮询
	Timeout                 time.Duration // 单次检查超时
	CheckOnFocus            bool
	CheckOnVisibilityChange bool
	CheckOnStart            bool
	RecheckDebounce         time.Duration // 可见性/焦点触发的重检防抖
	OnlineSettleDelay       time.Duration // 网络恢复后等待网络栈稳定的延迟
	HistorySize             int
}

// DefaultOptions 默认参数
func DefaultOptions() Options {
	return Options{
		CheckInterval:           10 * time.Minute,
		Timeout:                 10 * time.Second,
		CheckOnFocus:            false,
		CheckOnVisibilityChange: true,
		CheckOnStart:            true,
		RecheckDebounce:         time.Second,
		OnlineSettleDelay:       time.Second,
		HistorySize:             100,
	}
}

func (o Options) normalized() Options {
	if o.CheckInterval < 0 {
		o.CheckInterval = 0
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.RecheckDebounce < 0 {
		o.RecheckDebounce = 0
	}
	if o.OnlineSettleDelay < 0 {
		o.OnlineSettleDelay = 0
	}
	if o.HistorySize <= 0 {
		o.HistorySize = 100
	}
	return o
}
