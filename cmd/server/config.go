package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

type config struct {
	Port         string `yaml:"port"`
	BackendURL   string `yaml:"backendURL"`
	Greeting     string `yaml:"greeting"`
	FrameDelayMS int    `yaml:"frameDelayMs"`
}

func defaultConfig() config {
	return config{
		Port:         "8080",
		BackendURL:   "http://localhost:8000",
		Greeting:     "Hello! How can I help you today?",
		FrameDelayMS: 30,
	}
}

// loadConfig reads the YAML config file at path, falling back to defaults when the file does not
// exist. Individual values may also be supplied through the BACKEND_URL and PORT environment
// variables, which take precedence over the file.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return config{}, fmt.Errorf("error opening config file: %w", err)
		}
	} else {
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	}

	if v := os.Getenv("BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}

	if cfg.Port == "" {
		return config{}, fmt.Errorf("port is required")
	}
	if cfg.BackendURL == "" {
		return config{}, fmt.Errorf("backendURL is required")
	}
	if cfg.Greeting == "" {
		cfg.Greeting = defaultConfig().Greeting
	}
	if cfg.FrameDelayMS < 0 {
		return config{}, fmt.Errorf("frameDelayMs must not be negative")
	}

	return cfg, nil
}
