// Package config provides runtime configuration values for the service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration knobs for the HTTP server, probes, and the
// task registry.
type Config struct {
	HTTPAddr         string
	ShutdownTimeout  time.Duration
	Storefronts      []string
	ProbeTimeout     time.Duration
	PurchaseTimeout  time.Duration
	TaskRetention    time.Duration
	SweepInterval    time.Duration
	SubscriberBuffer int
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvms(key string, defMs int) time.Duration {
	ms := atoienv(key, defMs)
	return time.Duration(ms) * time.Millisecond
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

func listenv(key string, def []string) []string {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout:  durenvs("SHUTDOWN_TIMEOUT", 15),
		Storefronts:      listenv("STOREFRONTS", []string{"flipkart", "amazon", "blinkit", "zepto"}),
		ProbeTimeout:     durenvms("PROBE_TIMEOUT_MS", 90000),
		PurchaseTimeout:  durenvms("PURCHASE_TIMEOUT_MS", 180000),
		TaskRetention:    durenvs("TASK_RETENTION_S", 300),
		SweepInterval:    durenvms("SWEEP_INTERVAL_MS", 30000),
		SubscriberBuffer: atoienv("SUBSCRIBER_BUFFER", 32),
	}
}
