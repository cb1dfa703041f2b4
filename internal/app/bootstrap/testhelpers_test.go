package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, baseURL, addr string, extra ...string) string {
	t.Helper()
	body := fmt.Sprintf(`
http:
  addr: %q
logging:
  file:
    filename: ""
backend:
  baseURL: %q
connectivity:
  checkInterval: 0s
  timeout: 2s
  checkOnStart: true
`, addr, baseURL) + strings.Join(extra, "\n")
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}
