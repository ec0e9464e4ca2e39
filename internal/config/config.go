// Package config loads the server's small configuration surface: CLI
// arguments and a permissively-parsed config.json.
package config

import (
	"encoding/json"
	"os"

	"github.com/hyperreactor/reactord/internal/rlog"
)

const (
	DefaultPort          = 8080
	DefaultMaxConns      = 2000
	MaxAllowedMaxConns   = 100000
	DefaultWorkerCap     = 128
	DefaultDocumentRoot  = "./public"
	DefaultIndexFile     = "index.html"
	DefaultMaxFileSize   = 50 * 1024 * 1024
	DefaultCacheSizeByte = 100 * 1024 * 1024
	DefaultCacheTTL      = 0 // 0 disables TTL expiry
)

// Config is the fully-resolved runtime configuration, after CLI parsing
// and config.json have both been applied.
type Config struct {
	Port            int
	ThreadCount     int // 0 = auto-detect
	MaxConnections  int
	DocumentRoot    string
	IndexFile       string
	MaxFileSizeByte int64
	CacheSizeByte   int64
}

// fileConfig mirrors config.json's single recognized key. Unknown keys are
// ignored; the file is parsed permissively.
type fileConfig struct {
	MaxConnections int `json:"max_connections"`
}

// Default returns the built-in defaults, before CLI args or config.json
// are applied.
func Default() *Config {
	return &Config{
		Port:            DefaultPort,
		ThreadCount:     0,
		MaxConnections:  DefaultMaxConns,
		DocumentRoot:    DefaultDocumentRoot,
		IndexFile:       DefaultIndexFile,
		MaxFileSizeByte: DefaultMaxFileSize,
		CacheSizeByte:   DefaultCacheSizeByte,
	}
}

// LoadConfigFile applies config.json on top of cfg, ignoring unparseable
// files or out-of-range values entirely (falls back to the existing
// default rather than erroring).
func LoadConfigFile(cfg *Config, path string, logger *rlog.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		logger.Warnf("config.json: unparseable, using default max_connections=%d", cfg.MaxConnections)
		return
	}

	if fc.MaxConnections > 0 && fc.MaxConnections <= MaxAllowedMaxConns {
		cfg.MaxConnections = fc.MaxConnections
	} else if fc.MaxConnections != 0 {
		logger.Warnf("config.json: max_connections=%d out of range, using default %d", fc.MaxConnections, cfg.MaxConnections)
	}
}

// ParseArgs applies the CLI surface: `reactord [port] [thread_count]`.
// Invalid values are logged and the existing default is kept.
func ParseArgs(cfg *Config, args []string, logger *rlog.Logger) {
	if len(args) >= 1 {
		if port, ok := parsePositiveInt(args[0]); ok && port >= 1 && port <= 65535 {
			cfg.Port = port
		} else {
			logger.Warnf("invalid port %q, falling back to %d", args[0], cfg.Port)
		}
	}

	if len(args) >= 2 {
		if tc, ok := parsePositiveIntAllowZero(args[1]); ok {
			if tc > DefaultWorkerCap {
				logger.Warnf("thread_count=%d exceeds cap, auto-detecting", tc)
				tc = 0
			}
			cfg.ThreadCount = tc
		} else {
			logger.Warnf("invalid thread_count %q, auto-detecting", args[1])
		}
	}
}

func parsePositiveInt(s string) (int, bool) {
	n, ok := parsePositiveIntAllowZero(s)
	if !ok || n <= 0 {
		return 0, false
	}
	return n, true
}

func parsePositiveIntAllowZero(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
