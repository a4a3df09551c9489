package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Install writes a systemd unit that runs the current executable with args
// and starts it.
func Install(args []string) error {
	// Get the path to the current executable
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get the path to the current executable: %w", err)
	}
	exePath, err = filepath.Abs(exePath)
	if err != nil {
		return fmt.Errorf("failed to get the absolute path to the current executable: %w", err)
	}

	logrus.Infof("current executable path: %s", exePath)

	return install(exePath, args)
}

func install(exePath string, args []string) error {
	err := os.MkdirAll(filepath.Dir(unitPath), 0755)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(unitPath), err)
	}

	// warn if the file already exists
	if _, err := os.Stat(unitPath); err == nil {
		logrus.Warnf("%s already exists, overwriting", unitPath)
	}

	logrus.Infof("writing systemd unit to %s", unitPath)
	err = os.WriteFile(unitPath, []byte(renderUnit(exePath, args)), 0644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w. Are you root?", unitPath, err)
	}

	if err := systemctl("daemon-reload"); err != nil {
		return err
	}

	logrus.Infof("starting %s", unitName)
	return systemctl("enable", "--now", unitName)
}
