// Package config resolves the redirector's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultAccount is listed when GITHUB_USERNAME is not set.
	DefaultAccount = "aworkaround"
	// DefaultAPIURL is the public GitHub REST endpoint.
	DefaultAPIURL = "https://api.github.com/"
	// UserAgent identifies this client to the upstream API.
	UserAgent = "aworkaround-forwarder/1.0"

	APIRest    = "rest"
	APIGraphQL = "graphql"
)

// Config holds everything the commands need to wire the redirector.
type Config struct {
	Account         string
	Token           string
	APIURL          string
	GraphQLURL      string
	API             string
	ListenAddr      string
	AdminAddr       string
	RefreshInterval time.Duration
	RateLimitSleep  time.Duration
}

// LoadDotEnv reads .env and .env.local from the working directory if they exist.
// Variables already present in the environment are left alone.
func LoadDotEnv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

// FromEnv builds a Config from the process environment, falling back to defaults.
func FromEnv() (*Config, error) {
	refresh, err := durationEnv("REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}
	sleep, err := durationEnv("RATE_LIMIT_SLEEP", 10*time.Second)
	if err != nil {
		return nil, err
	}
	return &Config{
		Account:         getEnv("GITHUB_USERNAME", DefaultAccount),
		Token:           os.Getenv("GITHUB_TOKEN"),
		APIURL:          getEnv("GITHUB_API_URL", DefaultAPIURL),
		GraphQLURL:      os.Getenv("GITHUB_GRAPHQL_URL"),
		API:             getEnv("GITHUB_API", APIRest),
		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		AdminAddr:       os.Getenv("ADMIN_ADDR"),
		RefreshInterval: refresh,
		RateLimitSleep:  sleep,
	}, nil
}

// Validate reports settings the redirector cannot run with.
func (c *Config) Validate() error {
	if c.Account == "" {
		return errors.New("account must not be empty")
	}
	switch c.API {
	case APIRest:
	case APIGraphQL:
		// The GraphQL endpoint rejects anonymous requests.
		if c.Token == "" {
			return errors.New("graphql API requires GITHUB_TOKEN")
		}
	default:
		return fmt.Errorf("unknown API %q (want %q or %q)", c.API, APIRest, APIGraphQL)
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("refresh interval must not be negative, got %s", c.RefreshInterval)
	}
	if c.RateLimitSleep < 0 {
		return fmt.Errorf("rate limit sleep must not be negative, got %s", c.RateLimitSleep)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
