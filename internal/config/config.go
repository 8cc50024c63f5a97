package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envPrefix scopes environment overrides, e.g. GREENHOUSE_DB_PATH.
const envPrefix = "GREENHOUSE"

type Config struct {
	Port       string
	DB         DBConfig
	Log        LogConfig
	Auth       AuthConfig
	IoT        IoTConfig
	WS         WSConfig
	Dispatcher DispatcherConfig
	Watchdog   WatchdogConfig
	Simulator  SimulatorConfig
	MQTT       MQTTConfig
	Influx     InfluxConfig
	Metrics    MetricsConfig
	Bootstrap  BootstrapConfig
}

type DBConfig struct {
	Path    string
	Timeout time.Duration // bound on every store call
}

type LogConfig struct {
	Level  string
	Format string
}

type AuthConfig struct {
	SigningKey string
	TokenTTL   time.Duration
}

type IoTConfig struct {
	Pincode           string
	DefaultGreenhouse string
}

type WSConfig struct {
	SendBuffer     int
	AllowedOrigins []string
}

type DispatcherConfig struct {
	QueueSize   int
	IdleTimeout time.Duration
}

type WatchdogConfig struct {
	Enabled      bool
	Interval     time.Duration
	OfflineAfter time.Duration
}

type SimulatorConfig struct {
	Enabled      bool
	Interval     time.Duration
	DeviceID     string
	GreenhouseID string
}

type MQTTConfig struct {
	Enabled     bool
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         int
}

type InfluxConfig struct {
	Enabled bool
	URL     string
	Token   string
	Org     string
	Bucket  string
}

type MetricsConfig struct {
	Enabled bool
}

type BootstrapConfig struct {
	Devices bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db.path", "greenhouse.db")
	v.SetDefault("store.timeout", 5*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("iot.pincode", "")
	v.SetDefault("iot.default_greenhouse", "greenhouse-001")
	v.SetDefault("ws.send_buffer", 64)
	v.SetDefault("ws.allowed_origins", []string{})
	v.SetDefault("dispatcher.queue_size", 128)
	v.SetDefault("dispatcher.idle_timeout", time.Minute)
	v.SetDefault("watchdog.enabled", true)
	v.SetDefault("watchdog.interval", 30*time.Second)
	v.SetDefault("watchdog.offline_after", 5*time.Minute)
	v.SetDefault("simulator.enabled", false)
	v.SetDefault("simulator.interval", 5*time.Second)
	v.SetDefault("simulator.device_id", "ESP32_SIM")
	v.SetDefault("simulator.greenhouse_id", "greenhouse-001")
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "greenhouse-control")
	v.SetDefault("mqtt.topic_prefix", "greenhouse")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("influx.enabled", false)
	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.org", "greenhouse")
	v.SetDefault("influx.bucket", "telemetry")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("bootstrap.devices", true)
}

// Load reads configs/config.yml (or the directory given) and overlays the
// environment. A missing file is not an error: defaults apply.
func Load(dirs ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if len(dirs) == 0 {
		dirs = []string{"configs"}
	}
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	v.SetConfigName("config")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port: v.GetString("port"),
		DB: DBConfig{
			Path:    v.GetString("db.path"),
			Timeout: v.GetDuration("store.timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Auth: AuthConfig{
			SigningKey: v.GetString("auth.signing_key"),
			TokenTTL:   v.GetDuration("auth.token_ttl"),
		},
		IoT: IoTConfig{
			Pincode:           v.GetString("iot.pincode"),
			DefaultGreenhouse: v.GetString("iot.default_greenhouse"),
		},
		WS: WSConfig{
			SendBuffer:     v.GetInt("ws.send_buffer"),
			AllowedOrigins: v.GetStringSlice("ws.allowed_origins"),
		},
		Dispatcher: DispatcherConfig{
			QueueSize:   v.GetInt("dispatcher.queue_size"),
			IdleTimeout: v.GetDuration("dispatcher.idle_timeout"),
		},
		Watchdog: WatchdogConfig{
			Enabled:      v.GetBool("watchdog.enabled"),
			Interval:     v.GetDuration("watchdog.interval"),
			OfflineAfter: v.GetDuration("watchdog.offline_after"),
		},
		Simulator: SimulatorConfig{
			Enabled:      v.GetBool("simulator.enabled"),
			Interval:     v.GetDuration("simulator.interval"),
			DeviceID:     v.GetString("simulator.device_id"),
			GreenhouseID: v.GetString("simulator.greenhouse_id"),
		},
		MQTT: MQTTConfig{
			Enabled:     v.GetBool("mqtt.enabled"),
			Broker:      v.GetString("mqtt.broker"),
			ClientID:    v.GetString("mqtt.client_id"),
			Username:    v.GetString("mqtt.username"),
			Password:    v.GetString("mqtt.password"),
			TopicPrefix: v.GetString("mqtt.topic_prefix"),
			QoS:         v.GetInt("mqtt.qos"),
		},
		Influx: InfluxConfig{
			Enabled: v.GetBool("influx.enabled"),
			URL:     v.GetString("influx.url"),
			Token:   v.GetString("influx.token"),
			Org:     v.GetString("influx.org"),
			Bucket:  v.GetString("influx.bucket"),
		},
		Metrics:   MetricsConfig{Enabled: v.GetBool("metrics.enabled")},
		Bootstrap: BootstrapConfig{Devices: v.GetBool("bootstrap.devices")},
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Auth.SigningKey == "" {
		return errors.New("auth.signing_key must be set")
	}
	if c.DB.Timeout <= 0 {
		return errors.New("store.timeout must be positive")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if c.Influx.Enabled && c.Influx.Token == "" {
		return errors.New("influx.token is required when influx is enabled")
	}
	return nil
}
