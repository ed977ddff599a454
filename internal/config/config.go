package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// ICEServer is one entry served from /api/ice-config.
type ICEServer struct {
	URLs       []string `mapstructure:"urls" json:"urls"`
	Username   string   `mapstructure:"username" json:"username,omitempty"`
	Credential string   `mapstructure:"credential" json:"credential,omitempty"`
}

// Server configures the signaling server binary.
type Server struct {
	Mode       string      `mapstructure:"mode"`
	Port       int         `mapstructure:"port"`
	Secret     string      `mapstructure:"secret"`
	ICEServers []ICEServer `mapstructure:"ice_servers"`
}

// Client configures the mesh client binary.
type Client struct {
	SignalURL    string `mapstructure:"signal_url"`
	ICEConfigURL string `mapstructure:"ice_config_url"`
	Room         string `mapstructure:"room"`
	UserID       string `mapstructure:"user_id"`
	Name         string `mapstructure:"name"`
	Role         string `mapstructure:"role"`
	Language     string `mapstructure:"language"`
	Audio        bool   `mapstructure:"audio"`
	Video        bool   `mapstructure:"video"`
}

func newViper(defaults map[string]any) *viper.Viper {
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

	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}
	return v
}

func LoadServer() (*Server, error) {
	v := newViper(map[string]any{
		"mode":   "release",
		"port":   8080,
		"secret": "change-me",
	})

	var cfg Server
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func LoadClient() (*Client, error) {
	v := newViper(map[string]any{
		"signal_url":     "ws://localhost:8080/api/ws/signal",
		"ice_config_url": "http://localhost:8080/api/ice-config",
		"room":           "lobby",
		"role":           "participant",
		"audio":          true,
		"video":          true,
	})

	var cfg Client
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
