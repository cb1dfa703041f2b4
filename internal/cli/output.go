package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maizdemicorazon/pos-connectivity/internal/connectivity"
)

// Exit codes
const (
	ExitSuccess      = 0 // 后端可达
	ExitFailure      = 1 // 检查完成但未完全连通
	ExitCommandError = 2 // 配置/参数错误
)

// ExitError 携带退出码的错误
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError 创建 ExitError
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError 包装已有错误
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode 提取退出码，非 ExitError 时返回 ExitFailure
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CheckReport 单次检查输出
type CheckReport struct {
	HealthURL string
	Snapshot  connectivity.Snapshot
}

// WriteReport 按格式输出
func WriteReport(w io.Writer, format string, r CheckReport) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r.fields())
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r.fields()); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeText(w, r)
	}
}

// fields 扁平化为键值，json/yaml 共用同一套字段名
func (r CheckReport) fields() map[string]interface{} {
	s := r.Snapshot
	out := map[string]interface{}{
		"healthUrl":          r.HealthURL,
		"isOnline":           s.IsOnline,
		"isBackendOnline":    nil,
		"lastCheckTimestamp": nil,
		"lastError":          nil,
		"responseTimeMs":     nil,
		"checkStatus":        string(s.CheckStatus),
		"isFullyConnected":   s.IsFullyConnected,
		"connectionStatus":   string(s.ConnectionStatus),
		"statusText":         s.StatusText,
	}
	if s.IsBackendOnline != nil {
		out["isBackendOnline"] = *s.IsBackendOnline
	}
	if s.LastCheckTimestamp != nil {
		out["lastCheckTimestamp"] = s.LastCheckTimestamp.UTC().Format(time.RFC3339)
	}
	if s.LastError != nil {
		out["lastError"] = *s.LastError
	}
	if s.ResponseTimeMs != nil {
		out["responseTimeMs"] = *s.ResponseTimeMs
	}
	return out
}

func writeText(w io.Writer, r CheckReport) error {
	s := r.Snapshot

	backend := "unknown"
	if online, ok := s.BackendOnline(); ok {
		backend = "down"
		if online {
			backend = "up"
		}
	}
	response := "-"
	if s.ResponseTimeMs != nil {
		response = fmt.Sprintf("%dms", *s.ResponseTimeMs)
	}
	checkedAt := "-"
	if s.LastCheckTimestamp != nil {
		checkedAt = s.LastCheckTimestamp.UTC().Format(time.RFC3339)
	}
	lastErr := "-"
	if s.LastError != nil {
		lastErr = *s.LastError
	}
	hostOnline := "no"
	if s.IsOnline {
		hostOnline = "yes"
	}

	rows := [][2]string{
		{"status", s.StatusText},
		{"connection", string(s.ConnectionStatus)},
		{"endpoint", r.HealthURL},
		{"host online", hostOnline},
		{"backend", backend},
		{"response", response},
		{"checked at", checkedAt},
		{"error", lastErr},
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "%-12s %s\n", row[0]+":", row[1]); err != nil {
			return err
		}
	}
	return nil
}
