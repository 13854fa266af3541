package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the blockquant configuration file
// (~/.config/blockquant/config.yaml). Pointer fields distinguish "not set"
// from zero values.
type Config struct {
	Bits      *int64 `yaml:"bits"`
	BlockSize *int64 `yaml:"block_size"`
	Zstd      *bool  `yaml:"zstd"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "blockquant", "config.yaml")
}

// applyQuantConfig applies config file defaults to the quantize command
// when the corresponding CLI flag was not explicitly set.
func applyQuantConfig(c *cli.Command, cfg Config, compress *bool) {
	if cfg.Bits != nil && !c.IsSet("bits") && !c.IsSet("b") {
		bits = *cfg.Bits
	}
	if cfg.BlockSize != nil && !c.IsSet("block-size") && !c.IsSet("bs") {
		blockSize = *cfg.BlockSize
	}
	if cfg.Zstd != nil && !c.IsSet("zstd") {
		*compress = *cfg.Zstd
	}
	applyLoggingConfig(c, cfg)
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	applyLoggingConfig(c, cfg)
}

// LoadConfig reads the config file. Returns a zero Config if the file
// doesn't exist or doesn't parse.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
