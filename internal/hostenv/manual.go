package hostenv

import (
	"sync"

	"github.com/maizdemicorazon/pos-connectivity/internal/connectivity"
)

// Manual 由外部驱动的宿主环境：收银界面经 API 上报网络与可见性变化
type Manual struct {
	mu       sync.Mutex
	online   bool
	visible  bool
	handlers map[uint64]func(connectivity.Event)
	nextID   uint64
}

// NewManual 创建宿主环境
func NewManual(online, visible bool) *Manual {
	return &Manual{
		online:   online,
		visible:  visible,
		handlers: make(map[uint64]func(connectivity.Event)),
	}
}

func (e *Manual) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

func (e *Manual) Visible() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visible
}

func (e *Manual) Subscribe(fn func(connectivity.Event)) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.handlers[id] = fn
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.handlers, id)
			e.mu.Unlock()
		})
	}
}

// SetOnline 网络状态变化时派发 online/offline，未变化不派发
func (e *Manual) SetOnline(online bool) {
	e.mu.Lock()
	changed := e.online != online
	e.online = online
	e.mu.Unlock()

	if !changed {
		return
	}
	if online {
		e.emit(connectivity.EventOnline)
	} else {
		e.emit(connectivity.EventOffline)
	}
}

// SetVisible 可见性变化时派发 visibilitychange
func (e *Manual) SetVisible(visible bool) {
	e.mu.Lock()
	changed := e.visible != visible
	e.visible = visible
	e.mu.Unlock()

	if changed {
		e.emit(connectivity.EventVisibilityChange)
	}
}

// Focus 派发 focus
func (e *Manual) Focus() {
	e.emit(connectivity.EventFocus)
}

// Dispatch 应用一次上报的事件并总是派发；visible 仅对 visibilitychange 有意义，nil 表示不变
func (e *Manual) Dispatch(ev connectivity.Event, visible *bool) {
	e.mu.Lock()
	switch ev {
	case connectivity.EventOnline:
		e.online = true
	case connectivity.EventOffline:
		e.online = false
	case connectivity.EventVisibilityChange:
		if visible != nil {
			e.visible = *visible
		}
	}
	e.mu.Unlock()

	e.emit(ev)
}

// emit 在锁外调用回调，回调内可以读取 Online/Visible
func (e *Manual) emit(ev connectivity.Event) {
	e.mu.Lock()
	fns := make([]func(connectivity.Event), 0, len(e.handlers))
	for _, fn := range e.handlers {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
