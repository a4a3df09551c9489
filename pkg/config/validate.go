package config

import (
	"fmt"
	"strings"

	"github.com/ess-reader/ess-reader/pkg/errdefs"
)

// ValidateDevice checks the settings needed to read the ESS.
func ValidateDevice(c Config) error {
	if strings.TrimSpace(c.IP()) == "" {
		return errdefs.Config(fmt.Errorf("no IP of the ESS configured"))
	}
	if c.Port() <= 0 || c.Port() > 65535 {
		return errdefs.Config(fmt.Errorf("invalid ESS port %d", c.Port()))
	}
	return nil
}

// ValidateBackend checks the settings needed to forward readings to the
// configured backend.
func ValidateBackend(c Config) error {
	var missing []string
	require := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	switch c.Backend() {
	case BackendInflux:
		require("dbHost", c.DBHost())
		require("db", c.DB())
		if c.DBUser() != "" {
			require("dbPassword", c.DBPassword())
		}
	case BackendMQTT:
		require("mqttBroker", c.MQTTBroker())
		require("mqttTopic", c.MQTTTopic())
	case BackendSupabase:
		require("supabaseUrl", c.SupabaseURL())
		require("supabaseKey", c.SupabaseKey())
	default:
		return errdefs.Config(fmt.Errorf("unknown backend %q (available: %s, %s, %s)",
			c.Backend(), BackendInflux, BackendMQTT, BackendSupabase))
	}

	if len(missing) > 0 {
		return errdefs.Config(fmt.Errorf("backend %s requires %s", c.Backend(), strings.Join(missing, ", ")))
	}
	return nil
}
