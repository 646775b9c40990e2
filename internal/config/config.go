// Package config loads the process configuration from config/config.yml,
// layered with config/config.local.yml, then overridden by environment
// variables.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// StorageConfig holds the backing MongoDB connection settings.
type StorageConfig struct {
	MongoURI     string `yaml:"mongo_uri"`
	DatabaseName string `yaml:"database_name"`
}

// APIConfig holds the REST/gRPC facade's listen settings.
type APIConfig struct {
	Port int `yaml:"port"`
}

// SyncConfig holds the sync engine's tunables.
type SyncConfig struct {
	InstanceKey         string `yaml:"instance_key"`
	FastIntervalMS      int    `yaml:"fast_interval_ms"`
	SlowIntervalMS      int    `yaml:"slow_interval_ms"`
	BatchSizeLimitBytes int    `yaml:"batch_size_limit_bytes"`
}

// Config is the process-wide configuration tree.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	API     APIConfig     `yaml:"api"`
	Sync    SyncConfig    `yaml:"sync"`
}

func defaults() Config {
	return Config{
		Storage: StorageConfig{
			MongoURI:     "mongodb://localhost:27017",
			DatabaseName: "syntrix",
		},
		API: APIConfig{
			Port: 8080,
		},
		Sync: SyncConfig{
			FastIntervalMS:      500,
			SlowIntervalMS:      5000,
			BatchSizeLimitBytes: 5 * 1024 * 1024,
		},
	}
}

// LoadConfig builds the effective configuration: defaults, then
// config/config.yml if present, then config/config.local.yml if present,
// then environment variable overrides. Each layer only overwrites the
// fields it sets.
func LoadConfig() *Config {
	cfg := defaults()

	mergeFile(&cfg, "config/config.yml")
	mergeFile(&cfg, "config/config.local.yml")
	mergeEnv(&cfg)

	return &cfg
}

func mergeFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var layer Config
	if err := yaml.Unmarshal(data, &layer); err != nil {
		return
	}
	mergeInto(cfg, &layer, data)
}

// mergeInto copies only the fields layer's source file actually set,
// detected by re-parsing into a generic map so a zero value in layer
// (e.g. port: 0) can be told apart from "not specified in this file".
func mergeInto(cfg *Config, layer *Config, raw []byte) {
	var generic map[string]interface{}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return
	}

	if storage, ok := generic["storage"].(map[string]interface{}); ok {
		if _, ok := storage["mongo_uri"]; ok {
			cfg.Storage.MongoURI = layer.Storage.MongoURI
		}
		if _, ok := storage["database_name"]; ok {
			cfg.Storage.DatabaseName = layer.Storage.DatabaseName
		}
	}
	if api, ok := generic["api"].(map[string]interface{}); ok {
		if _, ok := api["port"]; ok {
			cfg.API.Port = layer.API.Port
		}
	}
	if sync, ok := generic["sync"].(map[string]interface{}); ok {
		if _, ok := sync["instance_key"]; ok {
			cfg.Sync.InstanceKey = layer.Sync.InstanceKey
		}
		if _, ok := sync["fast_interval_ms"]; ok {
			cfg.Sync.FastIntervalMS = layer.Sync.FastIntervalMS
		}
		if _, ok := sync["slow_interval_ms"]; ok {
			cfg.Sync.SlowIntervalMS = layer.Sync.SlowIntervalMS
		}
		if _, ok := sync["batch_size_limit_bytes"]; ok {
			cfg.Sync.BatchSizeLimitBytes = layer.Sync.BatchSizeLimitBytes
		}
	}
}

func mergeEnv(cfg *Config) {
	if v := os.Getenv("MONGO_URI"); v != "" {
		cfg.Storage.MongoURI = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Storage.DatabaseName = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("SYNC_INSTANCE_KEY"); v != "" {
		cfg.Sync.InstanceKey = v
	}
}
