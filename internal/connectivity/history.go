package connectivity

import (
	"sync"
	"time"
)

// Trigger 检查触发来源
type Trigger string

const (
	TriggerStart      Trigger = "start"
	TriggerInterval   Trigger = "interval"
	TriggerManual     Trigger = "manual"
	TriggerOnline     Trigger = "online"
	TriggerVisibility Trigger = "visibility"
	TriggerFocus      Trigger = "focus"
)

// CheckRecord 一次已完成检查的记录（被取消的检查不记录）
type CheckRecord struct {
	CheckedAt      time.Time   `json:"checkedAt"`
	OK             bool        `json:"ok"`
	Failure        FailureKind `json:"failure,omitempty"`
	Reason         string      `json:"reason,omitempty"`
	ResponseTimeMs int64       `json:"responseTimeMs"`
	Trigger        Trigger     `json:"trigger"`
}

// history 固定容量环形缓冲
type history struct {
	mu      sync.RWMutex
	records []CheckRecord
	next    int
	full    bool
}

func newHistory(size int) *history {
	return &history{records: make([]CheckRecord, size)}
}

func (h *history) add(rec CheckRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records[h.next] = rec
	h.next = (h.next + 1) % len(h.records)
	if h.next == 0 {
		h.full = true
	}
}

// latest 按时间倒序返回最多 limit 条，limit<=0 返回全部
func (h *history) latest(limit int) []CheckRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := h.next
	if h.full {
		n = len(h.records)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]CheckRecord, 0, limit)
	idx := h.next
	for i := 0; i < limit; i++ {
		idx--
		if idx < 0 {
			idx = len(h.records) - 1
		}
		out = append(out, h.records[idx])
	}
	return out
}
