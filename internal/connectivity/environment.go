package connectivity

import (
	"errors"
	"fmt"
)

// Event 宿主环境事件
type Event string

const (
	EventOnline           Event = "online"
	EventOffline          Event = "offline"
	EventVisibilityChange Event = "visibilitychange"
	EventFocus            Event = "focus"
)

// ErrInvalidEvent 未知事件类型
var ErrInvalidEvent = errors.New("invalid host event")

// ParseEvent 解析事件名
func ParseEvent(s string) (Event, error) {
	switch ev := Event(s); ev {
	case EventOnline, EventOffline, EventVisibilityChange, EventFocus:
		return ev, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidEvent, s)
	}
}

// Environment 宿主环境：报告网络/可见性，并在变化时通知
type Environment interface {
	Online() bool
	Visible() bool
	// Subscribe 注册事件回调，返回注销函数
	Subscribe(fn func(Event)) (unsubscribe func())
}

// StaticEnvironment 始终在线且可见、从不发事件，用于一次性检查
type StaticEnvironment struct{}

func (StaticEnvironment) Online() bool                 { return true }
func (StaticEnvironment) Visible() bool                { return true }
func (StaticEnvironment) Subscribe(func(Event)) func() { return func() {} }
