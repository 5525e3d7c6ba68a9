package conf

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWithNoConfigPathKeepsDefaults(t *testing.T) {
	cfg := NewCfg().Load(&CommandLineArgs{})
	if cfg.BindAddress != "127.0.0.1" {
		t.Errorf("BindAddress = %q, want 127.0.0.1", cfg.BindAddress)
	}
	if cfg.Port != 3308 {
		t.Errorf("Port = %d, want 3308", cfg.Port)
	}
}

func TestLoadWithMissingFileKeepsDefaults(t *testing.T) {
	cfg := NewCfg().Load(&CommandLineArgs{ConfigPath: filepath.Join(t.TempDir(), "missing.ini")})
	if cfg.BindAddress != "127.0.0.1" {
		t.Errorf("BindAddress = %q, want 127.0.0.1", cfg.BindAddress)
	}
	if cfg.Port != 3308 {
		t.Errorf("Port = %d, want 3308", cfg.Port)
	}
}

func TestLoadOverridesBindAddressAndPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "my.ini")
	contents := "[mysqld]\nbind-address = 0.0.0.0\nport = 4406\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := NewCfg().Load(&CommandLineArgs{ConfigPath: path})
	if cfg.BindAddress != "0.0.0.0" {
		t.Errorf("BindAddress = %q, want 0.0.0.0", cfg.BindAddress)
	}
	if cfg.Port != 4406 {
		t.Errorf("Port = %d, want 4406", cfg.Port)
	}
}

func TestLoadRejectsInvalidBindAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "my.ini")
	contents := "[mysqld]\nbind-address = not-an-ip\nport = 4406\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := NewCfg().Load(&CommandLineArgs{ConfigPath: path})
	if cfg.BindAddress != "127.0.0.1" {
		t.Errorf("BindAddress = %q, want default 127.0.0.1 preserved on invalid override", cfg.BindAddress)
	}
	if cfg.Port != 4406 {
		t.Errorf("Port = %d, want 4406", cfg.Port)
	}
}
