package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Signaling struct {
		BrokerURL  string `yaml:"broker_url"`
		RoomTopic  string `yaml:"room_topic"`
		HostPrefix string `yaml:"host_prefix"`
		PeerPrefix string `yaml:"peer_prefix"`
		QoS        byte   `yaml:"qos"`
	} `yaml:"signaling"`

	WebRTC struct {
		ICEServers []struct {
			URLs       []string `yaml:"urls"`
			Username   string   `yaml:"username,omitempty"`
			Credential string   `yaml:"credential,omitempty"`
		} `yaml:"ice_servers"`
		MaxBitrate  int           `yaml:"max_bitrate"` // outbound video cap, bps
		PLIInterval time.Duration `yaml:"pli_interval"`
	} `yaml:"webrtc"`

	Media struct {
		ScreenCommand      string `yaml:"screen_command"`
		CameraCommand      string `yaml:"camera_command"`
		MicCommand         string `yaml:"mic_command"`
		SystemAudioCommand string `yaml:"system_audio_command"`
		Devices            []struct {
			DeviceID string `yaml:"device_id"`
			Kind     string `yaml:"kind"` // videoinput or audioinput
			Label    string `yaml:"label"`
		} `yaml:"devices"`
	} `yaml:"media"`

	Quality struct {
		SampleInterval time.Duration `yaml:"sample_interval"`
	} `yaml:"quality"`

	Monitoring struct {
		PrometheusEnabled bool          `yaml:"prometheus_enabled"`
		MetricsInterval   time.Duration `yaml:"metrics_interval"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Locale string `yaml:"locale"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"http"`

		Signaling struct {
			MessagesPerSecond float64 `yaml:"messages_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"signaling"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Signaling
	if c.Signaling.BrokerURL == "" {
		return fmt.Errorf("signaling.broker_url must not be empty")
	}
	if c.Signaling.RoomTopic == "" {
		return fmt.Errorf("signaling.room_topic must not be empty")
	}
	if c.Signaling.HostPrefix == "" || c.Signaling.PeerPrefix == "" {
		return fmt.Errorf("signaling.host_prefix and signaling.peer_prefix must not be empty")
	}
	if c.Signaling.HostPrefix == c.Signaling.PeerPrefix {
		return fmt.Errorf("signaling.host_prefix and signaling.peer_prefix must differ")
	}
	if c.Signaling.QoS > 2 {
		return fmt.Errorf("signaling.qos must be 0, 1 or 2")
	}

	// WebRTC
	if c.WebRTC.MaxBitrate <= 0 {
		return fmt.Errorf("webrtc.max_bitrate must be > 0")
	}
	if c.WebRTC.PLIInterval <= 0 {
		return fmt.Errorf("webrtc.pli_interval must be > 0")
	}

	// Quality
	if c.Quality.SampleInterval <= 0 {
		return fmt.Errorf("quality.sample_interval must be > 0")
	}

	// Monitoring
	if c.Monitoring.MetricsInterval <= 0 {
		return fmt.Errorf("monitoring.metrics_interval must be > 0")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Signaling.MessagesPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.signaling.messages_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Signaling.Burst <= 0 {
			return fmt.Errorf("rate_limiting.signaling.burst must be > 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Signaling.BrokerURL = "tcp://broker.emqx.io:1883"
	cfg.Signaling.RoomTopic = "CHNWT/L1VESTR3AM/"
	cfg.Signaling.HostPrefix = "H0ST"
	cfg.Signaling.PeerPrefix = "P33R"
	cfg.Signaling.QoS = 0 // at-most-once, matches the public broker channel model

	cfg.WebRTC.MaxBitrate = 10_000_000 // 10 Mbps
	cfg.WebRTC.PLIInterval = 3 * time.Second

	cfg.Quality.SampleInterval = time.Second

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.MetricsInterval = 5 * time.Second

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Locale = "en"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.Signaling.MessagesPerSecond = 20
	cfg.RateLimiting.Signaling.Burst = 40

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("LIVECAST_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if url := os.Getenv("LIVECAST_BROKER_URL"); url != "" {
		c.Signaling.BrokerURL = url
	}
	if topic := os.Getenv("LIVECAST_ROOM_TOPIC"); topic != "" {
		c.Signaling.RoomTopic = topic
	}
	if level := os.Getenv("LIVECAST_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if locale := os.Getenv("LIVECAST_LOCALE"); locale != "" {
		c.Locale = locale
	}
}
