package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	authclient "github.com/MrEthical07/authclient"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cliConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	SessionFile   string        `mapstructure:"session_file"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisEmbedded bool          `mapstructure:"redis_embedded"`
	SessionID     string        `mapstructure:"session_id"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ExpiresInMins int           `mapstructure:"expires_in_mins"`
	Verbose       bool          `mapstructure:"verbose"`
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".authctl", "session")
	}
	return filepath.Join(home, ".authctl", "session")
}

func setDefaults(v *viper.Viper) {
	defaults := authclient.DefaultConfig()
	v.SetDefault("base_url", defaults.HTTP.BaseURL)
	v.SetDefault("session_file", defaultSessionFile())
	v.SetDefault("session_id", "authctl")
	v.SetDefault("timeout", defaults.HTTP.Timeout)
	v.SetDefault("expires_in_mins", 0)
}

// loadConfig merges defaults, the optional config file, AUTHCTL_* env vars
// and command-line flags, in increasing precedence.
func loadConfig(cmd *cobra.Command) (*cliConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".authctl"))
	}
	if file, _ := cmd.Flags().GetString("config"); file != "" {
		v.SetConfigFile(file)
	}

	v.SetEnvPrefix("AUTHCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"base_url":        "base-url",
		"session_file":    "session-file",
		"redis_addr":      "redis-addr",
		"redis_embedded":  "redis-embedded",
		"session_id":      "session-id",
		"timeout":         "timeout",
		"expires_in_mins": "expires-in-mins",
		"verbose":         "verbose",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg cliConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}
