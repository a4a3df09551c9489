package config

// Backend names accepted in the config file and on the command line.
const (
	BackendInflux   = "influx"
	BackendMQTT     = "mqtt"
	BackendSupabase = "supabase"
)

// Config is the finished configuration consumed by the reader.
type Config interface {
	IP() string
	Port() int
	Backend() string
	DBHost() string
	DB() string
	DBUser() string
	DBPassword() string
	MQTTBroker() string
	MQTTTopic() string
	SupabaseURL() string
	SupabaseKey() string
	SupabaseSchema() string
	Listen() string

	// Apply overlays every non-nil field of o onto the configuration.
	Apply(o *RawFileConfig)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
