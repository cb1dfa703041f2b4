package connectivity

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/maizdemicorazon/pos-connectivity/internal/metrics"
)

var (
	// ErrCheckTimeout 检查超过 Options.Timeout
	ErrCheckTimeout = errors.New("connectivity check timed out")

	errSuperseded  = errors.New("connectivity check superseded")
	errStopped     = errors.New("connectivity monitor stopped")
	errWentOffline = errors.New("host went offline")
)

const flightKey = "backend"

// Option Monitor 可选依赖
type Option func(*Monitor)

// WithLogger 注入日志器
func WithLogger(l *zap.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithScheduler 注入定时器（测试用假时钟）
func WithScheduler(s Scheduler) Option {
	return func(m *Monitor) {
		if s != nil {
			m.sched = s
		}
	}
}

// WithEnvironment 注入宿主环境
func WithEnvironment(env Environment) Option {
	return func(m *Monitor) {
		if env != nil {
			m.env = env
		}
	}
}

// WithMetrics 注入指标
func WithMetrics(mt *metrics.ConnectivityMetrics) Option {
	return func(m *Monitor) { m.metrics = mt }
}

// flight 一次进行中的检查
type flight struct {
	gen       uint64
	ctx       context.Context
	cancel    context.CancelCauseFunc
	stopTimer CancelFunc
	started   time.Time
	trigger   Trigger
	run       func() (interface{}, error)
}

// change 带版本号的快照，用于保证通知顺序
type change struct {
	snap    Snapshot
	version uint64
}

// Monitor 后端连接监控器
// 同一时刻最多一个检查在途；状态只在本结构内修改，外部读取副本
type Monitor struct {
	prober  Prober
	opts    Options
	env     Environment
	sched   Scheduler
	logger  *zap.Logger
	metrics *metrics.ConnectivityMetrics
	history *history
	group   singleflight.Group

	// 生命周期上下文，Stop 时以 errStopped 取消，所有检查从它派生
	ctx    context.Context
	cancel context.CancelCauseFunc

	mu             sync.Mutex
	state          State
	gen            uint64 // 检查代数，过期检查的结果直接丢弃
	version        uint64
	inflight       *flight
	started        bool
	disposed       bool
	stopPolling    CancelFunc
	pendingRecheck CancelFunc
	recheckSeq     uint64
	unsubscribeEnv func()
	subscribers    map[uint64]func(Snapshot)
	nextSubID      uint64

	notifyMu sync.Mutex
	notified uint64
}

// NewMonitor 创建监控器，Start 之前即可调用 CheckBackendConnectivity
func NewMonitor(prober Prober, opts Options, options ...Option) *Monitor {
	m := &Monitor{
		prober:      prober,
		opts:        opts.normalized(),
		env:         StaticEnvironment{},
		sched:       SystemScheduler(),
		logger:      zap.NewNop(),
		subscribers: make(map[uint64]func(Snapshot)),
	}
	for _, o := range options {
		o(m)
	}
	m.history = newHistory(m.opts.HistorySize)
	m.ctx, m.cancel = context.WithCancelCause(context.Background())
	m.state = State{IsOnline: m.env.Online(), CheckStatus: CheckIdle}
	return m
}

// Start 订阅宿主事件、启动轮询，并按需触发首次检查
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.started || m.disposed {
		m.mu.Unlock()
		return
	}
	m.started = true

	online := m.env.Online()
	if online {
		m.state.IsOnline = true
	} else {
		m.goOfflineLocked()
	}
	if m.opts.CheckInterval > 0 {
		m.stopPolling = m.sched.ScheduleRepeating(m.opts.CheckInterval, m.onTick)
	}
	c := m.changeLocked()
	m.mu.Unlock()

	unsubscribe := m.env.Subscribe(m.handleEvent)
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		unsubscribe()
		return
	}
	m.unsubscribeEnv = unsubscribe
	m.mu.Unlock()

	m.metrics.SetNetworkUp(online)
	m.logger.Info("connectivity monitor started",
		zap.Duration("check_interval", m.opts.CheckInterval),
		zap.Duration("timeout", m.opts.Timeout),
		zap.Bool("check_on_focus", m.opts.CheckOnFocus),
		zap.Bool("check_on_visibility_change", m.opts.CheckOnVisibilityChange),
		zap.Bool("online", online))
	m.notify(c)

	if m.opts.CheckOnStart && online {
		go m.check(context.Background(), false, TriggerStart)
	}
}

// Stop 停止轮询、取消在途检查与待触发重检、注销宿主事件；之后状态不再变化
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	m.disposed = true
	stopPolling, pending, unsubscribe := m.stopPolling, m.pendingRecheck, m.unsubscribeEnv
	m.stopPolling, m.pendingRecheck, m.unsubscribeEnv = nil, nil, nil
	m.inflight = nil
	m.mu.Unlock()

	m.cancel(errStopped)
	if stopPolling != nil {
		stopPolling()
	}
	if pending != nil {
		pending()
	}
	if unsubscribe != nil {
		unsubscribe()
	}
	m.logger.Info("connectivity monitor stopped")
}

// Snapshot 返回当前状态快照
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Snapshot()
}

// History 最近完成的检查记录（新的在前）
func (m *Monitor) History(limit int) []CheckRecord {
	return m.history.latest(limit)
}

// Subscribe 注册状态变化回调，回调串行执行且按变化顺序送达。
// 回调内不能同步调用 Recheck/CheckBackendConnectivity，耗时操作应转交其他 goroutine。
func (m *Monitor) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// Recheck 手动强制重检（界面“立即验证”）
func (m *Monitor) Recheck(ctx context.Context) bool {
	return m.check(ctx, true, TriggerManual)
}

// CheckBackendConnectivity 检查后端是否可达。
// force=false 时若已有检查在途则复用其结果，不发起新请求；
// force=true 时取消在途请求后重新检查。
// 失败只记录在状态中，不向调用方返回错误。ctx 仅限制调用方等待时间，
// 提前返回时给出上次已知结果，检查本身继续进行。
func (m *Monitor) CheckBackendConnectivity(ctx context.Context, force bool) bool {
	return m.check(ctx, force, TriggerManual)
}

func (m *Monitor) check(ctx context.Context, force bool, trigger Trigger) bool {
	m.mu.Lock()
	if m.disposed {
		online := m.lastKnownLocked()
		m.mu.Unlock()
		return online
	}

	// 本机无网络：不发请求，直接记为离线
	if !m.env.Online() {
		wasOnline := m.state.IsOnline
		m.goOfflineLocked()
		c := m.changeLocked()
		m.mu.Unlock()
		if wasOnline {
			m.metrics.SetNetworkUp(false)
			m.metrics.SetBackendUp(false)
			m.logger.Warn("host offline, backend check skipped", zap.String("trigger", string(trigger)))
		}
		m.notify(c)
		return false
	}

	var f *flight
	started := false
	if m.inflight != nil && !force {
		f = m.inflight
	} else {
		if m.inflight != nil {
			m.logger.Debug("superseding in-flight connectivity check",
				zap.Uint64("gen", m.inflight.gen),
				zap.String("trigger", string(trigger)))
			m.inflight.cancel(errSuperseded)
			m.metrics.IncSuperseded()
		}
		f = m.beginLocked(trigger)
		started = true
	}
	ch := m.group.DoChan(flightKey, f.run)
	var c change
	if started {
		c = m.changeLocked()
	}
	m.mu.Unlock()

	if started {
		m.notify(c)
	}

	select {
	case res := <-ch:
		online, _ := res.Val.(bool)
		return online
	case <-ctx.Done():
		return m.lastKnown()
	}
}

// beginLocked 开启新一代检查：超时计时、进入 checking
func (m *Monitor) beginLocked(trigger Trigger) *flight {
	m.gen++
	ctx, cancel := context.WithCancelCause(m.ctx)
	f := &flight{
		gen:     m.gen,
		ctx:     ctx,
		cancel:  cancel,
		started: m.sched.Now(),
		trigger: trigger,
	}
	f.stopTimer = m.sched.ScheduleOnce(m.opts.Timeout, func() { cancel(ErrCheckTimeout) })
	f.run = func() (interface{}, error) { return m.runFlight(f), nil }

	// 旧 key 可能仍挂着已结束的调用，必须先移除，否则新检查会并入旧调用
	m.group.Forget(flightKey)
	m.inflight = f
	m.state.CheckStatus = CheckChecking
	return f
}

// runFlight 探测与超时竞速，先到者为准
func (m *Monitor) runFlight(f *flight) bool {
	defer m.release(f)

	done := make(chan error, 1)
	go func() { done <- m.prober.Probe(f.ctx) }()

	var err error
	select {
	case err = <-done:
	case <-f.ctx.Done():
		err = context.Cause(f.ctx)
	}
	elapsed := m.sched.Now().Sub(f.started)
	cause := context.Cause(f.ctx)

	f.stopTimer()
	// 超时后仍在进行的请求一并中止
	f.cancel(nil)

	return m.complete(f, err, cause, elapsed)
}

func (m *Monitor) release(f *flight) {
	m.mu.Lock()
	if m.inflight == f {
		m.inflight = nil
		if m.state.CheckStatus == CheckChecking {
			m.state.CheckStatus = m.settledStatusLocked()
		}
	}
	m.mu.Unlock()
}

func (m *Monitor) complete(f *flight, err, cause error, elapsed time.Duration) bool {
	m.mu.Lock()
	if m.disposed || f.gen != m.gen {
		online := m.lastKnownLocked()
		m.mu.Unlock()
		m.logger.Debug("discarding stale connectivity check", zap.Uint64("gen", f.gen))
		return online
	}
	if err != nil && cause != nil && !errors.Is(cause, ErrCheckTimeout) {
		// 被取消不是失败，保留原有状态
		m.inflight = nil
		m.state.CheckStatus = m.settledStatusLocked()
		online := m.lastKnownLocked()
		c := m.changeLocked()
		m.mu.Unlock()
		m.notify(c)
		return online
	}
	if err != nil && cause != nil {
		err = cause
	}

	prevOnline, known := m.state.BackendOnline()
	now := m.sched.Now()
	ms := elapsed.Milliseconds()
	rec := CheckRecord{CheckedAt: now, ResponseTimeMs: ms, Trigger: f.trigger}

	m.inflight = nil
	m.state.LastCheckTimestamp = &now
	m.state.ResponseTimeMs = &ms
	ok := err == nil
	if ok {
		m.state.IsBackendOnline = ptr(true)
		m.state.LastError = nil
		m.state.CheckStatus = CheckConnected
		rec.OK = true
	} else {
		kind, reason := classifyFailure(err)
		m.state.IsBackendOnline = ptr(false)
		m.state.LastError = ptr(reason)
		m.state.CheckStatus = CheckError
		rec.Failure, rec.Reason = kind, reason
	}
	c := m.changeLocked()
	m.mu.Unlock()

	m.history.add(rec)
	result := "success"
	if !ok {
		result = string(rec.Failure)
	}
	m.metrics.ObserveCheck(result, elapsed)
	m.metrics.SetBackendUp(ok)

	fields := []zap.Field{
		zap.String("trigger", string(f.trigger)),
		zap.Bool("ok", ok),
		zap.Int64("response_time_ms", ms),
		zap.String("reason", rec.Reason),
	}
	// 仅在可达性变化时提升日志级别
	switch {
	case ok && !(known && prevOnline):
		m.logger.Info("backend reachable", fields...)
	case !ok && (!known || prevOnline):
		m.logger.Warn("backend unreachable", fields...)
	default:
		m.logger.Debug("connectivity check finished", fields...)
	}

	m.notify(c)
	return ok
}

// handleEvent 处理宿主事件
func (m *Monitor) handleEvent(ev Event) {
	switch ev {
	case EventOffline:
		m.mu.Lock()
		if m.disposed {
			m.mu.Unlock()
			return
		}
		m.goOfflineLocked()
		c := m.changeLocked()
		m.mu.Unlock()

		m.metrics.SetNetworkUp(false)
		m.metrics.SetBackendUp(false)
		m.logger.Warn("host went offline")
		m.notify(c)

	case EventOnline:
		m.mu.Lock()
		if m.disposed {
			m.mu.Unlock()
			return
		}
		m.state.IsOnline = true
		m.scheduleRecheckLocked(m.opts.OnlineSettleDelay, TriggerOnline)
		c := m.changeLocked()
		m.mu.Unlock()

		m.metrics.SetNetworkUp(true)
		m.logger.Info("host back online, recheck scheduled", zap.Duration("delay", m.opts.OnlineSettleDelay))
		m.notify(c)

	case EventVisibilityChange:
		if !m.opts.CheckOnVisibilityChange || !m.env.Visible() {
			return
		}
		m.mu.Lock()
		if !m.disposed {
			m.scheduleRecheckLocked(m.opts.RecheckDebounce, TriggerVisibility)
		}
		m.mu.Unlock()

	case EventFocus:
		if !m.opts.CheckOnFocus {
			return
		}
		m.mu.Lock()
		if !m.disposed {
			m.scheduleRecheckLocked(m.opts.RecheckDebounce, TriggerFocus)
		}
		m.mu.Unlock()
	}
}

// scheduleRecheckLocked 防抖：重置待触发的重检，窗口内多次触发只执行一次
func (m *Monitor) scheduleRecheckLocked(delay time.Duration, trigger Trigger) {
	if m.pendingRecheck != nil {
		m.pendingRecheck()
	}
	m.recheckSeq++
	seq := m.recheckSeq
	m.pendingRecheck = m.sched.ScheduleOnce(delay, func() {
		m.mu.Lock()
		if m.disposed || m.recheckSeq != seq {
			m.mu.Unlock()
			return
		}
		m.pendingRecheck = nil
		m.mu.Unlock()

		go m.check(context.Background(), true, trigger)
	})
}

// onTick 轮询：页面不可见或本机离线时跳过
func (m *Monitor) onTick() {
	m.mu.Lock()
	disposed := m.disposed
	m.mu.Unlock()
	if disposed {
		return
	}
	if !m.env.Visible() || !m.env.Online() {
		m.metrics.IncSkippedTick()
		m.logger.Debug("polling tick skipped",
			zap.Bool("visible", m.env.Visible()),
			zap.Bool("online", m.env.Online()))
		return
	}
	go m.check(context.Background(), false, TriggerInterval)
}

// goOfflineLocked 断网快速路径：不发请求，直接判定后端不可达
func (m *Monitor) goOfflineLocked() {
	if m.inflight != nil {
		m.inflight.cancel(errWentOffline)
		m.inflight = nil
		m.gen++
	}
	if m.pendingRecheck != nil {
		m.pendingRecheck()
		m.pendingRecheck = nil
		m.recheckSeq++
	}
	m.state.IsOnline = false
	m.state.IsBackendOnline = ptr(false)
	m.state.LastError = ptr(ReasonNoInternet)
	m.state.CheckStatus = CheckError
}

func (m *Monitor) settledStatusLocked() CheckStatus {
	online, ok := m.state.BackendOnline()
	switch {
	case !ok:
		return CheckIdle
	case online:
		return CheckConnected
	default:
		return CheckError
	}
}

func (m *Monitor) lastKnown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastKnownLocked()
}

func (m *Monitor) lastKnownLocked() bool {
	online, _ := m.state.BackendOnline()
	return online
}

func (m *Monitor) changeLocked() change {
	m.version++
	return change{snap: m.state.Snapshot(), version: m.version}
}

// notify 串行派发，丢弃比已派发版本更旧的快照
func (m *Monitor) notify(c change) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	if c.version <= m.notified {
		return
	}
	m.notified = c.version

	m.mu.Lock()
	fns := make([]func(Snapshot), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(c.snap)
	}
}
