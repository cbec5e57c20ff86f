package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig
	Oracle   OracleConfig
	WhatsApp WhatsAppConfig
	Server   ServerConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// OracleConfig holds LLM oracle settings.
type OracleConfig struct {
	Provider  string
	APIKeyEnv string `mapstructure:"api_key_env"`
	APIKey    string `mapstructure:"api_key"`
	Model     string
}

// WhatsAppConfig holds outbound messaging settings.
type WhatsAppConfig struct {
	Mode          string // "log" or "cloud"
	APIURL        string `mapstructure:"api_url"`
	PhoneNumberID string `mapstructure:"phone_number_id"`
	TokenEnv      string `mapstructure:"token_env"`
}

// ServerConfig holds webhook gateway settings.
type ServerConfig struct {
	Addr string
}

// Load reads configuration from file and env. Env var overrides use prefix VAQUITA_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "vaquita", "vaquita.db"))
	v.SetDefault("oracle.provider", "openai")
	v.SetDefault("oracle.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.model", "gpt-4o-mini")
	v.SetDefault("whatsapp.mode", "log")
	v.SetDefault("whatsapp.api_url", "https://graph.facebook.com/v20.0")
	v.SetDefault("whatsapp.phone_number_id", "")
	v.SetDefault("whatsapp.token_env", "WHATSAPP_TOKEN")
	v.SetDefault("server.addr", ":8080")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("VAQUITA_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "vaquita"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("VAQUITA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
