package app

import (
	"net/http"

	"go.uber.org/zap"

	cfgpkg "github.com/maizdemicorazon/pos-connectivity/internal/config"
	"github.com/maizdemicorazon/pos-connectivity/internal/thirdparty"
)

// NewTransitionNotifier 创建状态变化推送器，未启用时返回 nil
func NewTransitionNotifier(cfg cfgpkg.WebhookConfig, agentID string, logger *zap.Logger) *thirdparty.TransitionNotifier {
	if !cfg.Enabled || cfg.URL == "" {
		return nil
	}
	pusher := thirdparty.NewPusher(&http.Client{Timeout: cfg.Timeout}, cfg.APIKey, cfg.Secret)
	if cfg.Retries >= 0 {
		pusher.Retries = cfg.Retries
	}
	return thirdparty.NewTransitionNotifier(pusher, cfg.URL, agentID, logger)
}
