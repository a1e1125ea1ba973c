package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is read from the environment:
//
//	DATABASE_URL          postgres connection string; empty keeps caches in memory
//	PORT                  listen port (8080)
//	OPTIONS_CACHE_TTL     default option cache TTL in seconds (300)
//	OPTIONS_HTTP_RETRIES  retries for URL option sources (2)
//	OPTIONS_HTTP_TIMEOUT  per-attempt timeout for URL option sources (10s)
//	OPTIONS_MODELS        model=table pairs readable by model sources, comma separated
//	FORMS_FILE            JSON file of form definitions loaded at startup
type Config struct {
	DatabaseURL string
	Port        string
	CacheTTL    time.Duration
	HTTPRetries int
	HTTPTimeout time.Duration
	Models      map[string]string
	FormsFile   string
}

func defaultConfig() Config {
	return Config{
		Port:        "8080",
		CacheTTL:    300 * time.Second,
		HTTPRetries: 2,
		HTTPTimeout: 10 * time.Second,
		Models:      map[string]string{},
	}
}

// ConfigFromEnv builds a Config from environment variables.
func ConfigFromEnv() (Config, error) {
	return configFrom(os.Getenv)
}

func configFrom(getenv func(string) string) (Config, error) {
	cfg := defaultConfig()
	cfg.DatabaseURL = getenv("DATABASE_URL")
	cfg.FormsFile = getenv("FORMS_FILE")
	if port := getenv("PORT"); port != "" {
		cfg.Port = port
	}

	if s := getenv("OPTIONS_CACHE_TTL"); s != "" {
		secs, err := strconv.Atoi(s)
		if err != nil || secs <= 0 {
			return Config{}, fmt.Errorf("OPTIONS_CACHE_TTL must be a positive number of seconds, got %q", s)
		}
		cfg.CacheTTL = time.Duration(secs) * time.Second
	}

	if s := getenv("OPTIONS_HTTP_RETRIES"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("OPTIONS_HTTP_RETRIES must be a non-negative integer, got %q", s)
		}
		cfg.HTTPRetries = n
	}

	if s := getenv("OPTIONS_HTTP_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("OPTIONS_HTTP_TIMEOUT must be a positive duration, got %q", s)
		}
		cfg.HTTPTimeout = d
	}

	if s := getenv("OPTIONS_MODELS"); s != "" {
		for _, pair := range strings.Split(s, ",") {
			model, table, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || model == "" || table == "" {
				return Config{}, fmt.Errorf("OPTIONS_MODELS entry %q must look like model=table", pair)
			}
			cfg.Models[strings.TrimSpace(model)] = strings.TrimSpace(table)
		}
	}

	return cfg, nil
}
