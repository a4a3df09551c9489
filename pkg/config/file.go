package config

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ess-reader/ess-reader/pkg/utils/ptr"
)

const redacted = "******"

var (
	defaultFileConfig = &RawFileConfig{
		Port:           ptr.To(21710),
		Backend:        ptr.To(BackendInflux),
		MQTTTopic:      ptr.To("ess"),
		SupabaseSchema: ptr.To("public"),
	}
)

var _ Config = &File{}

// File is a Config backed by a JSON file.
type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "ess-reader.json"
	}
	return filepath.Join(dir, "ess-reader", "config.json")
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	return &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}
}

// RawFileConfig is the on-disk form. Nil fields fall back to defaults.
type RawFileConfig struct {
	IP             *string `json:"ip,omitempty"`
	Port           *int    `json:"port,omitempty"`
	Backend        *string `json:"backend,omitempty"`
	DBHost         *string `json:"dbHost,omitempty"`
	DB             *string `json:"db,omitempty"`
	DBUser         *string `json:"dbUser,omitempty"`
	DBPassword     *string `json:"dbPassword,omitempty"`
	MQTTBroker     *string `json:"mqttBroker,omitempty"`
	MQTTTopic      *string `json:"mqttTopic,omitempty"`
	SupabaseURL    *string `json:"supabaseUrl,omitempty"`
	SupabaseKey    *string `json:"supabaseKey,omitempty"`
	SupabaseSchema *string `json:"supabaseSchema,omitempty"`
	Listen         *string `json:"listen,omitempty"`
}

// NewRawFileConfigFromConfig resolves every field of c, defaults included.
// Secrets are replaced unless withSecrets is set.
func NewRawFileConfigFromConfig(c Config, withSecrets bool) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	password, key := c.DBPassword(), c.SupabaseKey()
	if !withSecrets {
		password, key = redact(password), redact(key)
	}

	return &RawFileConfig{
		IP:             ptr.To(c.IP()),
		Port:           ptr.To(c.Port()),
		Backend:        ptr.To(c.Backend()),
		DBHost:         ptr.To(c.DBHost()),
		DB:             ptr.To(c.DB()),
		DBUser:         ptr.To(c.DBUser()),
		DBPassword:     ptr.To(password),
		MQTTBroker:     ptr.To(c.MQTTBroker()),
		MQTTTopic:      ptr.To(c.MQTTTopic()),
		SupabaseURL:    ptr.To(c.SupabaseURL()),
		SupabaseKey:    ptr.To(key),
		SupabaseSchema: ptr.To(c.SupabaseSchema()),
		Listen:         ptr.To(c.Listen()),
	}, nil
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}

// get reads one field under the read lock, falling back to the default.
func get[T any](f *File, field func(*RawFileConfig) *T) T {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var zero T
	return ptr.Deref(field(f.c), ptr.Deref(field(defaultFileConfig), zero))
}

func (f *File) IP() string     { return get(f, func(c *RawFileConfig) *string { return c.IP }) }
func (f *File) Port() int      { return get(f, func(c *RawFileConfig) *int { return c.Port }) }
func (f *File) DBHost() string { return get(f, func(c *RawFileConfig) *string { return c.DBHost }) }
func (f *File) DB() string     { return get(f, func(c *RawFileConfig) *string { return c.DB }) }
func (f *File) DBUser() string { return get(f, func(c *RawFileConfig) *string { return c.DBUser }) }
func (f *File) DBPassword() string {
	return get(f, func(c *RawFileConfig) *string { return c.DBPassword })
}
func (f *File) MQTTBroker() string {
	return get(f, func(c *RawFileConfig) *string { return c.MQTTBroker })
}
func (f *File) MQTTTopic() string {
	return get(f, func(c *RawFileConfig) *string { return c.MQTTTopic })
}
func (f *File) SupabaseURL() string {
	return get(f, func(c *RawFileConfig) *string { return c.SupabaseURL })
}
func (f *File) SupabaseKey() string {
	return get(f, func(c *RawFileConfig) *string { return c.SupabaseKey })
}
func (f *File) SupabaseSchema() string {
	return get(f, func(c *RawFileConfig) *string { return c.SupabaseSchema })
}
func (f *File) Listen() string { return get(f, func(c *RawFileConfig) *string { return c.Listen }) }

// Backend is always lower case.
func (f *File) Backend() string {
	return strings.ToLower(get(f, func(c *RawFileConfig) *string { return c.Backend }))
}

func (f *File) Apply(o *RawFileConfig) {
	if f.c == nil {
		panic("config is nil")
	}
	if o == nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	overlay(&f.c.IP, o.IP)
	overlay(&f.c.Port, o.Port)
	overlay(&f.c.Backend, o.Backend)
	overlay(&f.c.DBHost, o.DBHost)
	overlay(&f.c.DB, o.DB)
	overlay(&f.c.DBUser, o.DBUser)
	overlay(&f.c.DBPassword, o.DBPassword)
	overlay(&f.c.MQTTBroker, o.MQTTBroker)
	overlay(&f.c.MQTTTopic, o.MQTTTopic)
	overlay(&f.c.SupabaseURL, o.SupabaseURL)
	overlay(&f.c.SupabaseKey, o.SupabaseKey)
	overlay(&f.c.SupabaseSchema, o.SupabaseSchema)
	overlay(&f.c.Listen, o.Listen)
}

func overlay[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	err := os.MkdirAll(filepath.Dir(f.filepath), 0755)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to create directory for %s", f.filepath)
	}

	// The file may hold backend credentials.
	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"ip":         f.IP(),
		"port":       f.Port(),
		"backend":    f.Backend(),
		"dbHost":     f.DBHost(),
		"db":         f.DB(),
		"dbUser":     f.DBUser(),
		"dbPassword": redact(f.DBPassword()),
		"mqttBroker": f.MQTTBroker(),
		"mqttTopic":  f.MQTTTopic(),
		"supabase":   f.SupabaseURL(),
		"listen":     f.Listen(),
	}
}
