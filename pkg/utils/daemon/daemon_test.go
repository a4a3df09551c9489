package daemon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeSystemd(t *testing.T) *[]string {
	t.Helper()
	oldPath, oldCtl := unitPath, systemctl
	t.Cleanup(func() { unitPath, systemctl = oldPath, oldCtl })

	unitPath = filepath.Join(t.TempDir(), "system", unitName)
	var calls []string
	systemctl = func(args ...string) error {
		calls = append(calls, strings.Join(args, " "))
		return nil
	}
	return &calls
}

func TestRenderUnit(t *testing.T) {
	unit := renderUnit("/usr/local/bin/ess-reader", []string{"run", "--cron", "--config", "/etc/ess reader/config.json"})
	assert.Contains(t, unit, `ExecStart=/usr/local/bin/ess-reader run --cron --config "/etc/ess reader/config.json"`+"\n")
	assert.Contains(t, unit, "WantedBy=multi-user.target")
	assert.NotContains(t, unit, "{{exec}}")
	// A failed cycle ends the service for good.
	assert.Contains(t, unit, "Restart=no\n")
	assert.NotContains(t, unit, "Restart=on-failure")
	assert.NotContains(t, unit, "RestartSec=")
}

func TestInstallUninstall(t *testing.T) {
	calls := fakeSystemd(t)

	require.NoError(t, install("/opt/ess-reader", []string{"run", "--cron"}))
	b, err := os.ReadFile(unitPath)
	require.NoError(t, err)
	assert.Contains(t, string(b), "ExecStart=/opt/ess-reader run --cron")
	assert.Equal(t, []string{"daemon-reload", "enable --now " + unitName}, *calls)

	*calls = nil
	require.NoError(t, Uninstall())
	_, err = os.Stat(unitPath)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, []string{"disable --now " + unitName, "daemon-reload"}, *calls)

	// Uninstalling twice is fine.
	*calls = nil
	require.NoError(t, Uninstall())
	assert.Empty(t, *calls)
}
