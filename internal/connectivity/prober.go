package connectivity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Prober 执行一次轻量的后端可达性探测，nil 表示可达
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc 函数适配器
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// FailureKind 失败分类
type FailureKind string

const (
	FailureTransport FailureKind = "transport" // DNS/拒绝连接/TLS 等
	FailureHTTP      FailureKind = "http"      // 非 2xx 响应
	FailureTimeout   FailureKind = "timeout"
)

// HTTPStatusError 非 2xx 响应
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// classifyFailure 将探测错误映射为失败分类与界面展示的原因
func classifyFailure(err error) (FailureKind, string) {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return FailureHTTP, statusErr.Error()
	}
	if errors.Is(err, ErrCheckTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout, ReasonTimeout
	}
	// url.Error 会带上 "Get \"...\":" 前缀，只保留底层原因
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return FailureTransport, urlErr.Err.Error()
	}
	return FailureTransport, err.Error()
}

// maxDrainBytes 读取并丢弃的响应体上限，便于连接复用
const maxDrainBytes = 64 << 10

// HTTPProber 对健康检查地址发起 GET 请求
type HTTPProber struct {
	client *http.Client
	url    string
}

// NewHTTPProber 创建 HTTP 探测器；client 为 nil 时使用无全局超时的默认客户端，
// 超时由 Monitor 通过 context 控制
func NewHTTPProber(client *http.Client, healthURL string) (*HTTPProber, error) {
	u, err := url.Parse(healthURL)
	if err != nil {
		return nil, fmt.Errorf("parse health url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("health url: unsupported scheme %q", u.Scheme)
	}
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPProber{client: client, url: u.String()}, nil
}

// URL 返回探测地址
func (p *HTTPProber) URL() string { return p.url }

// Probe 发送无请求体、禁用缓存的 GET；任意 2xx 视为可达，响应体忽略
func (p *HTTPProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPStatusError{StatusCode: resp.StatusCode}
	}
	return nil
}
