package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperreactor/reactord/internal/rlog"
)

func TestParseArgsValid(t *testing.T) {
	cfg := Default()
	ParseArgs(cfg, []string{"9090", "8"}, rlog.Default())
	if cfg.Port != 9090 || cfg.ThreadCount != 8 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParseArgsInvalidPortFallsBack(t *testing.T) {
	cfg := Default()
	ParseArgs(cfg, []string{"notaport"}, rlog.Default())
	if cfg.Port != DefaultPort {
		t.Fatalf("expected default port %d, got %d", DefaultPort, cfg.Port)
	}

	cfg = Default()
	ParseArgs(cfg, []string{"70000"}, rlog.Default())
	if cfg.Port != DefaultPort {
		t.Fatalf("expected out-of-range port to fall back, got %d", cfg.Port)
	}
}

func TestParseArgsThreadCountOverCapAutoDetects(t *testing.T) {
	cfg := Default()
	ParseArgs(cfg, []string{"8080", "999"}, rlog.Default())
	if cfg.ThreadCount != 0 {
		t.Fatalf("expected over-cap thread count to clamp to auto (0), got %d", cfg.ThreadCount)
	}
}

func TestLoadConfigFileRecognizedKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"max_connections": 500, "unknown": true}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	LoadConfigFile(cfg, path, rlog.Default())
	if cfg.MaxConnections != 500 {
		t.Fatalf("expected max_connections 500, got %d", cfg.MaxConnections)
	}
}

func TestLoadConfigFileUnparseableKeepsDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	LoadConfigFile(cfg, path, rlog.Default())
	if cfg.MaxConnections != DefaultMaxConns {
		t.Fatalf("expected default max_connections, got %d", cfg.MaxConnections)
	}
}

func TestLoadConfigFileOutOfRangeKeepsDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"max_connections": 9999999}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	LoadConfigFile(cfg, path, rlog.Default())
	if cfg.MaxConnections != DefaultMaxConns {
		t.Fatalf("expected out-of-range value to keep default, got %d", cfg.MaxConnections)
	}
}

func TestLoadConfigFileMissingIsSilent(t *testing.T) {
	cfg := Default()
	LoadConfigFile(cfg, filepath.Join(t.TempDir(), "absent.json"), rlog.Default())
	if cfg.MaxConnections != DefaultMaxConns {
		t.Fatalf("expected defaults untouched, got %+v", cfg)
	}
}
