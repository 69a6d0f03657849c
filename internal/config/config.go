package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode      string `mapstructure:"mode"`
	Port      int    `mapstructure:"port"`
	UploadDir string `mapstructure:"upload_dir"`

	MessageTTL      time.Duration `mapstructure:"message_ttl"`
	PresenceTimeout time.Duration `mapstructure:"presence_timeout"`
	PresenceSweep   time.Duration `mapstructure:"presence_sweep"`
	ExpirySweep     time.Duration `mapstructure:"expiry_sweep"`
	RoomIdleAfter   time.Duration `mapstructure:"room_idle_after"`

	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
	SendBuffer     int   `mapstructure:"send_buffer"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("upload_dir", "./uploads")
	v.SetDefault("message_ttl", "1h")
	v.SetDefault("presence_timeout", "60s")
	v.SetDefault("presence_sweep", "30s")
	v.SetDefault("expiry_sweep", "60s")
	v.SetDefault("room_idle_after", "24h")
	v.SetDefault("max_upload_bytes", 100*1024*1024)
	v.SetDefault("send_buffer", 32)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
