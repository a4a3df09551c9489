package main

import (
	"github.com/spf13/cobra"

	"github.com/ess-reader/ess-reader/pkg/config"
	"github.com/ess-reader/ess-reader/pkg/errdefs"
	"github.com/ess-reader/ess-reader/pkg/utils/ptr"
)

// overrides are per-invocation values for config fields. Only flags given on
// the command line override the config file.
type overrides struct {
	ip             string
	port           int
	backend        string
	dbHost         string
	db             string
	dbUser         string
	dbPassword     string
	mqttBroker     string
	mqttTopic      string
	supabaseURL    string
	supabaseKey    string
	supabaseSchema string
	listen         string
}

func (o *overrides) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.ip, "ip", "", "IP address of the ESS")
	f.IntVar(&o.port, "port", 21710, "HTTP port of the ESS status page")
	f.StringVar(&o.backend, "backend", config.BackendInflux, "backend to forward readings to (influx, mqtt, supabase)")
	f.StringVar(&o.dbHost, "db-host", "", "InfluxDB address, e.g. http://localhost:8086")
	f.StringVar(&o.db, "db", "", "InfluxDB database")
	f.StringVar(&o.dbUser, "db-user", "", "InfluxDB user")
	f.StringVar(&o.dbPassword, "db-password", "", "InfluxDB password")
	f.StringVar(&o.mqttBroker, "mqtt-broker", "", "MQTT broker, e.g. tcp://localhost:1883")
	f.StringVar(&o.mqttTopic, "mqtt-topic", "ess", "MQTT topic prefix")
	f.StringVar(&o.supabaseURL, "supabase-url", "", "Supabase project URL")
	f.StringVar(&o.supabaseKey, "supabase-key", "", "Supabase API key")
	f.StringVar(&o.supabaseSchema, "supabase-schema", "public", "Supabase schema")
	f.StringVar(&o.listen, "listen", "", "address of the status API in --cron mode, e.g. 127.0.0.1:9710")
}

// raw returns the overrides given on the command line.
func (o *overrides) raw(cmd *cobra.Command) *config.RawFileConfig {
	f := cmd.Flags()
	rc := &config.RawFileConfig{}

	str := func(name string, dst **string, v string) {
		if f.Changed(name) {
			*dst = ptr.To(v)
		}
	}
	str("ip", &rc.IP, o.ip)
	str("backend", &rc.Backend, o.backend)
	str("db-host", &rc.DBHost, o.dbHost)
	str("db", &rc.DB, o.db)
	str("db-user", &rc.DBUser, o.dbUser)
	str("db-password", &rc.DBPassword, o.dbPassword)
	str("mqtt-broker", &rc.MQTTBroker, o.mqttBroker)
	str("mqtt-topic", &rc.MQTTTopic, o.mqttTopic)
	str("supabase-url", &rc.SupabaseURL, o.supabaseURL)
	str("supabase-key", &rc.SupabaseKey, o.supabaseKey)
	str("supabase-schema", &rc.SupabaseSchema, o.supabaseSchema)
	str("listen", &rc.Listen, o.listen)
	if f.Changed("port") {
		rc.Port = ptr.To(o.port)
	}

	return rc
}

// loadConfig reads the config file and applies the command line overrides.
func loadConfig(cmd *cobra.Command, o *overrides) (*config.File, error) {
	conf, err := config.NewFile(configPath)
	if err != nil {
		return nil, errdefs.Config(err)
	}
	conf.Apply(o.raw(cmd))
	return conf, nil
}
