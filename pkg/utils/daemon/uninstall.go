package daemon

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Uninstall stops the service and removes its unit file.
func Uninstall() error {
	// if the unit doesn't exist, there is nothing to stop
	_, err := os.Stat(unitPath)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.Infof("%s not installed", unitName)
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", unitPath, err)
	}

	logrus.Infof("stopping %s", unitName)
	if err := systemctl("disable", "--now", unitName); err != nil {
		return err
	}

	logrus.Infof("removing %s", unitPath)
	err = os.Remove(unitPath)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w. Are you root?", unitPath, err)
	}

	return systemctl("daemon-reload")
}
