package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Buffer    BufferConfig    `mapstructure:"buffer"`
	Source    SourceConfig    `mapstructure:"source"`
	Audio     AudioConfig     `mapstructure:"audio"`
	Recording RecordingConfig `mapstructure:"recording"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Users     UsersConfig     `mapstructure:"users"`
	Log       LogConfig       `mapstructure:"log"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	TokenTTL  string `mapstructure:"token_ttl"`
}

// BufferConfig sizes the two ring channels of the acquisition pipeline.
type BufferConfig struct {
	ByteCapacity   int `mapstructure:"byte_capacity"`
	SampleCapacity int `mapstructure:"sample_capacity"`
	MinSize        int `mapstructure:"min_size"`
	NotifyQueue    int `mapstructure:"notify_queue"`
}

type SourceConfig struct {
	Type          string   `mapstructure:"type"` // serial, audio, tone, null
	Port          string   `mapstructure:"port"`
	BaudRate      int      `mapstructure:"baud_rate"`
	DeviceKeyword string   `mapstructure:"device_keyword"`
	VID           string   `mapstructure:"vid"`
	PID           string   `mapstructure:"pid"`
	RetryInterval string   `mapstructure:"retry_interval"`
	ExcludePorts  []string `mapstructure:"exclude_ports"`
}

type AudioConfig struct {
	SampleRate     int    `mapstructure:"sample_rate"`
	Channels       int    `mapstructure:"channels"`
	BitsPerSample  int    `mapstructure:"bits_per_sample"`
	Encoding       string `mapstructure:"encoding"` // pcm16le, ulaw, alaw
	CaptureChunkMs int    `mapstructure:"capture_chunk_ms"`
	DecodeChunkMs  int    `mapstructure:"decode_chunk_ms"`
}

type RecordingConfig struct {
	Directory      string `mapstructure:"directory"`
	SegmentSeconds int    `mapstructure:"segment_seconds"`
	WriteWAV       bool   `mapstructure:"write_wav"`
}

type WebhookConfig struct {
	Workers int    `mapstructure:"workers"`
	Timeout string `mapstructure:"timeout"`
}

type UsersConfig struct {
	DefaultAdminPassword string `mapstructure:"default_admin_password"`
}

var AppConfig Config

func LoadConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults. Error: %v", err)
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	ApplyDefaults(&AppConfig)

	log.Println("Configuration loaded successfully")
}

// ApplyDefaults fills every unset field with its default.
func ApplyDefaults(c *Config) {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = "CHANGE_ME_IN_CONFIG"
	}
	if c.Auth.TokenTTL == "" {
		c.Auth.TokenTTL = "24h"
	}

	if c.Buffer.ByteCapacity <= 0 {
		c.Buffer.ByteCapacity = 256 * 1024
	}
	if c.Buffer.SampleCapacity <= 0 {
		c.Buffer.SampleCapacity = 128 * 1024
	}
	if c.Buffer.NotifyQueue <= 0 {
		c.Buffer.NotifyQueue = 256
	}

	if c.Source.Type == "" {
		c.Source.Type = "null"
	}
	if c.Source.BaudRate <= 0 {
		c.Source.BaudRate = 115200
	}
	if c.Source.RetryInterval == "" {
		c.Source.RetryInterval = "3s"
	}

	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = 10000
	}
	if c.Audio.Channels <= 0 {
		c.Audio.Channels = 1
	}
	if c.Audio.BitsPerSample <= 0 {
		c.Audio.BitsPerSample = 16
	}
	if c.Audio.Encoding == "" {
		c.Audio.Encoding = "pcm16le"
	}
	if c.Audio.CaptureChunkMs <= 0 {
		c.Audio.CaptureChunkMs = 40
	}
	if c.Audio.DecodeChunkMs <= 0 {
		c.Audio.DecodeChunkMs = 100
	}

	if c.Recording.Directory == "" {
		c.Recording.Directory = "recordings"
	}

	if c.Webhook.Workers <= 0 {
		c.Webhook.Workers = 4
	}
	if c.Webhook.Timeout == "" {
		c.Webhook.Timeout = "10s"
	}
}

// Duration parses s, falling back to def when s is empty, invalid or not
// positive.
func Duration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
