package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// GenerateAgentID 生成收银端实例ID
// 优先使用配置值，否则生成 pos-{hostname}-{uuid前8位}
func GenerateAgentID(configured string) string {
	if id := strings.TrimSpace(configured); id != "" {
		return id
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	shortUUID := uuid.New().String()[:8]
	return fmt.Sprintf("pos-%s-%s", hostname, shortUUID)
}
