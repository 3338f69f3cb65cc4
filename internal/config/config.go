package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env       string `mapstructure:"env"`
	Port      int    `mapstructure:"port"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type MongoConfig struct {
	URI                    string `mapstructure:"uri"`
	Database               string `mapstructure:"database"`
	MessagesCollection     string `mapstructure:"messages_collection"`
	AppointmentsCollection string `mapstructure:"appointments_collection"`
}

type RedisConfig struct {
	Addr               string `mapstructure:"addr"`
	Password           string `mapstructure:"password"`
	DB                 int    `mapstructure:"db"`
	Prefix             string `mapstructure:"prefix"`
	PresenceTTLSeconds int    `mapstructure:"presence_ttl_seconds"`
}

type KafkaConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	Brokers          []string `mapstructure:"brokers"`
	TopicMessageSent string   `mapstructure:"topic_message_sent"`
}

type WSConfig struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	ReadDeadlineSeconds  int   `mapstructure:"read_deadline_seconds"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
}

type Config struct {
	App   AppConfig   `mapstructure:"app"`
	Mongo MongoConfig `mapstructure:"mongo"`
	Redis RedisConfig `mapstructure:"redis"`
	Kafka KafkaConfig `mapstructure:"kafka"`
	WS    WSConfig    `mapstructure:"ws"`

	// Derived
	PingInterval  time.Duration
	WriteDeadline time.Duration
	ReadDeadline  time.Duration
	PresenceTTL   time.Duration
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.App.Port == 0 {
		cfg.App.Port = 8080
	}
	if cfg.Mongo.MessagesCollection == "" {
		cfg.Mongo.MessagesCollection = "messages"
	}
	if cfg.Mongo.AppointmentsCollection == "" {
		cfg.Mongo.AppointmentsCollection = "appointments"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "realtime"
	}
	if cfg.Redis.PresenceTTLSeconds == 0 {
		cfg.Redis.PresenceTTLSeconds = 24 * 60 * 60
	}
	if cfg.WS.PingIntervalSeconds == 0 {
		cfg.WS.PingIntervalSeconds = 25
	}
	if cfg.WS.WriteDeadlineSeconds == 0 {
		cfg.WS.WriteDeadlineSeconds = 10
	}
	if cfg.WS.ReadDeadlineSeconds == 0 {
		cfg.WS.ReadDeadlineSeconds = 60
	}
	if cfg.WS.MaxMessageSizeBytes == 0 {
		cfg.WS.MaxMessageSizeBytes = 64 * 1024
	}

	cfg.PingInterval = time.Duration(cfg.WS.PingIntervalSeconds) * time.Second
	cfg.WriteDeadline = time.Duration(cfg.WS.WriteDeadlineSeconds) * time.Second
	cfg.ReadDeadline = time.Duration(cfg.WS.ReadDeadlineSeconds) * time.Second
	cfg.PresenceTTL = time.Duration(cfg.Redis.PresenceTTLSeconds) * time.Second
	return &cfg, nil
}
