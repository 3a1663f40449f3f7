package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultAPRSHost       = "rotate.aprs2.net"
	DefaultAPRSPort       = 14580
	DefaultAPRSFilter     = "filter a/-21.0/16.45/-35.5/33.5"
	DefaultLoginTimeout   = 30
	DefaultMQTTHost       = "localhost"
	DefaultMQTTPort       = 1883
	DefaultUpdateInterval = 10
	DefaultStoragePath    = "nodes.db"

	envPrefix = "M2A"
)

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// APRSConfig describes the APRS-IS uplink and the gateway's own call-sign.
type APRSConfig struct {
	Callsign     string `mapstructure:"callsign"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Filter       string `mapstructure:"filter"`
	LoginTimeout int    `mapstructure:"login_timeout"`
}

// MQTTConfig describes the broker carrying Meshtastic service envelopes.
type MQTTConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
}

// MeshtasticConfig holds the channel pre-shared key, base64 encoded.
type MeshtasticConfig struct {
	Key string `mapstructure:"key"`
}

// NodeConfig maps a mesh node to the call-sign it is reported under.
type NodeConfig struct {
	Callsign string `mapstructure:"callsign"`
}

// StorageConfig selects the node store backend by file extension.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// AppConfig is the root gateway configuration.
type AppConfig struct {
	APRS           APRSConfig            `mapstructure:"aprs"`
	MQTT           MQTTConfig            `mapstructure:"mqtt"`
	Meshtastic     MeshtasticConfig      `mapstructure:"meshtastic"`
	Nodes          map[string]NodeConfig `mapstructure:"nodes"`
	UpdateInterval int                   `mapstructure:"update_interval"`
	Storage        StorageConfig         `mapstructure:"storage"`
	Logging        LoggingConfig         `mapstructure:"logging"`
}

// SettingError reports a missing or unusable configuration value.
type SettingError struct {
	Key    string
	Reason string
}

func (e *SettingError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

// Missing returns a SettingError for a required key that was not set.
func Missing(key string) *SettingError {
	return &SettingError{Key: key, Reason: "is required"}
}

func Default() AppConfig {
	return AppConfig{
		APRS: APRSConfig{
			Host:         DefaultAPRSHost,
			Port:         DefaultAPRSPort,
			Filter:       DefaultAPRSFilter,
			LoginTimeout: DefaultLoginTimeout,
		},
		MQTT: MQTTConfig{
			Host: DefaultMQTTHost,
			Port: DefaultMQTTPort,
		},
		Nodes:          map[string]NodeConfig{},
		UpdateInterval: DefaultUpdateInterval,
		Storage: StorageConfig{
			Path: DefaultStoragePath,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the JSON config file at path. A missing file is not an error:
// defaults plus M2A_* environment overrides are used instead.
func Load(path string) (AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return AppConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.FillMissingDefaults()

	return cfg, nil
}

func setDefaults(v *viper.Viper, d AppConfig) {
	v.SetDefault("aprs.callsign", d.APRS.Callsign)
	v.SetDefault("aprs.host", d.APRS.Host)
	v.SetDefault("aprs.port", d.APRS.Port)
	v.SetDefault("aprs.filter", d.APRS.Filter)
	v.SetDefault("aprs.login_timeout", d.APRS.LoginTimeout)
	v.SetDefault("mqtt.host", d.MQTT.Host)
	v.SetDefault("mqtt.port", d.MQTT.Port)
	v.SetDefault("mqtt.username", d.MQTT.Username)
	v.SetDefault("mqtt.password", d.MQTT.Password)
	v.SetDefault("mqtt.topic", d.MQTT.Topic)
	v.SetDefault("mqtt.client_id", d.MQTT.ClientID)
	v.SetDefault("meshtastic.key", d.Meshtastic.Key)
	v.SetDefault("update_interval", d.UpdateInterval)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
}

func (c *AppConfig) FillMissingDefaults() {
	c.APRS.Callsign = strings.ToUpper(strings.TrimSpace(c.APRS.Callsign))
	if strings.TrimSpace(c.APRS.Host) == "" {
		c.APRS.Host = DefaultAPRSHost
	}
	if c.APRS.Port <= 0 {
		c.APRS.Port = DefaultAPRSPort
	}
	if c.APRS.LoginTimeout <= 0 {
		c.APRS.LoginTimeout = DefaultLoginTimeout
	}
	if strings.TrimSpace(c.MQTT.Host) == "" {
		c.MQTT.Host = DefaultMQTTHost
	}
	if c.MQTT.Port <= 0 {
		c.MQTT.Port = DefaultMQTTPort
	}
	if c.Nodes == nil {
		c.Nodes = map[string]NodeConfig{}
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = DefaultStoragePath
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

func (c AppConfig) Validate() error {
	if c.APRS.Callsign == "" {
		return Missing("aprs.callsign")
	}
	if strings.TrimSpace(c.MQTT.Topic) == "" {
		return Missing("mqtt.topic")
	}
	if c.UpdateInterval < 0 {
		return &SettingError{Key: "update_interval", Reason: "must not be negative"}
	}
	for nodeID, node := range c.Nodes {
		if strings.TrimSpace(node.Callsign) == "" {
			return Missing("nodes." + nodeID + ".callsign")
		}
	}

	return nil
}
