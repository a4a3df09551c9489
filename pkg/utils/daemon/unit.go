package daemon

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const unitName = "ess-reader.service"

var (
	unitPath = "/etc/systemd/system/" + unitName

	// systemctl runs systemctl with the given arguments.
	systemctl = func(args ...string) error {
		out, err := exec.Command("systemctl", args...).CombinedOutput()
		if err != nil {
			return fmt.Errorf("systemctl %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
		}
		return nil
	}
)

const unitTemplate = `[Unit]
Description=ESS status page reader
Wants=network-online.target
After=network-online.target

[Service]
Type=simple
ExecStart={{exec}}
Restart=no

[Install]
WantedBy=multi-user.target
`

// renderUnit returns the unit file running exePath with args.
func renderUnit(exePath string, args []string) string {
	words := append([]string{exePath}, args...)
	for i, w := range words {
		if strings.ContainsAny(w, " \t\"'\\") {
			words[i] = strconv.Quote(w)
		}
	}
	return strings.ReplaceAll(unitTemplate, "{{exec}}", strings.Join(words, " "))
}
