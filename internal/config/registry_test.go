package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/muurk/salus/internal/salus"
)

func TestGetConfigDir(t *testing.T) {
	if runtime.GOOS == "linux" {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	}

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.Contains(configDir, "salus") {
		t.Errorf("GetConfigDir() = %v, should contain 'salus'", configDir)
	}

	if runtime.GOOS == "linux" && configDir != filepath.Join("/tmp/xdg-test", "salus") {
		t.Errorf("GetConfigDir() = %v, want XDG_CONFIG_HOME/salus", configDir)
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}

	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}
	if reg.Devices == nil {
		t.Error("NewRegistry().Devices should not be nil")
	}
	if reg.Preferences == nil {
		t.Fatal("NewRegistry().Preferences should not be nil")
	}
	if reg.PollInterval() != 60*time.Second {
		t.Errorf("PollInterval() = %v, want 60s", reg.PollInterval())
	}
	if reg.RequestTimeout() != 10*time.Second {
		t.Errorf("RequestTimeout() = %v, want 10s", reg.RequestTimeout())
	}
	if reg.Account != nil {
		t.Error("NewRegistry().Account should be nil")
	}
}

func TestRegistryEnsureDevice(t *testing.T) {
	reg := NewRegistry()

	device1 := reg.EnsureDevice("STA1")
	if device1 == nil {
		t.Fatal("EnsureDevice() returned nil")
	}

	device2 := reg.EnsureDevice("STA1")
	if device1 != device2 {
		t.Error("EnsureDevice() should return same instance for same id")
	}

	device3 := reg.EnsureDevice("STA2")
	if device1 == device3 {
		t.Error("EnsureDevice() should create new instance for different id")
	}

	if got := reg.DeviceIDs(); len(got) != 2 || got[0] != "STA1" || got[1] != "STA2" {
		t.Errorf("DeviceIDs() = %v", got)
	}
}

func TestDeviceDisplayName(t *testing.T) {
	var missing *Device
	if missing.DisplayName() != salus.DefaultName {
		t.Errorf("nil DisplayName() = %q", missing.DisplayName())
	}
	if (&Device{Name: "  "}).DisplayName() != salus.DefaultName {
		t.Error("blank name should fall back to the default")
	}
	if (&Device{Name: "Hallway"}).DisplayName() != "Hallway" {
		t.Error("DisplayName() should return the configured name")
	}
}

func TestRegistryResolveDevice(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.ResolveDevice(""); err == nil {
		t.Error("ResolveDevice() with no devices should fail")
	}

	reg.EnsureDevice("STA1")
	if id, err := reg.ResolveDevice(""); err != nil || id != "STA1" {
		t.Errorf("ResolveDevice() = %q, %v; want the only device", id, err)
	}

	reg.EnsureDevice("STA2")
	if _, err := reg.ResolveDevice(""); err == nil {
		t.Error("ResolveDevice() with several devices and no default should fail")
	}

	reg.Preferences.DefaultDevice = "STA2"
	if id, _ := reg.ResolveDevice(""); id != "STA2" {
		t.Errorf("ResolveDevice() = %q, want default STA2", id)
	}
	if id, _ := reg.ResolveDevice(" STA9 "); id != "STA9" {
		t.Errorf("ResolveDevice(explicit) = %q, want STA9", id)
	}
}

func TestRegistryRecordState(t *testing.T) {
	reg := NewRegistry()
	at := time.Date(2026, 1, 5, 7, 30, 0, 0, time.UTC)

	reg.RecordState("STA1", salus.ThermostatState{TargetTemperatureC: 21.5, Mode: salus.ModeOff}, at)

	device := reg.GetDevice("STA1")
	if device == nil {
		t.Fatal("Device should exist after RecordState()")
	}
	if device.LastTarget != 21.5 || device.LastMode != "OFF" || !device.LastSeen.Equal(at) {
		t.Errorf("device = %+v", device)
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	reg := NewRegistry()
	reg.SetAccount(" me@example.com ", "https://portal.test")
	device := reg.EnsureDevice("STA1")
	device.Name = "Hallway"
	device.WaterHeating = true
	reg.Preferences.PollIntervalSeconds = 30
	reg.Preferences.DefaultDevice = "STA1"

	if err := reg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("config mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be renamed away")
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if loaded.Account == nil || loaded.Account.Email != "me@example.com" || loaded.Account.BaseURL != "https://portal.test" {
		t.Errorf("Account = %+v", loaded.Account)
	}
	got := loaded.GetDevice("STA1")
	if got == nil || got.Name != "Hallway" || !got.WaterHeating || got.SecondHeatingZone {
		t.Errorf("device = %+v", got)
	}
	if loaded.PollInterval() != 30*time.Second {
		t.Errorf("PollInterval() = %v, want 30s", loaded.PollInterval())
	}
}

func TestSaveNeverWritesPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	reg := NewRegistry()
	reg.SetAccount("me@example.com", "")

	if err := reg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.Contains(string(data), "password:") {
		t.Errorf("config should not contain a password field:\n%s", data)
	}
}

func TestLoadFrom(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file gives defaults", func(t *testing.T) {
		reg, err := LoadFrom(filepath.Join(dir, "absent.yaml"))
		if err != nil {
			t.Fatalf("LoadFrom() error = %v", err)
		}
		if reg.Version != 1 || reg.Preferences == nil {
			t.Errorf("LoadFrom() = %+v", reg)
		}
	})

	t.Run("minimal file gets defaults filled", func(t *testing.T) {
		path := filepath.Join(dir, "minimal.yaml")
		if err := os.WriteFile(path, []byte("version: 1\n"), 0600); err != nil {
			t.Fatal(err)
		}
		reg, err := LoadFrom(path)
		if err != nil {
			t.Fatalf("LoadFrom() error = %v", err)
		}
		if reg.Devices == nil || reg.Preferences == nil {
			t.Errorf("LoadFrom() = %+v", reg)
		}
	})

	t.Run("unsupported version", func(t *testing.T) {
		path := filepath.Join(dir, "v2.yaml")
		if err := os.WriteFile(path, []byte("version: 2\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadFrom(path); err == nil {
			t.Error("LoadFrom() should reject version 2")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(path, []byte("version: [\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadFrom(path); err == nil {
			t.Error("LoadFrom() should reject invalid YAML")
		}
	})
}

func BenchmarkEnsureDevice(b *testing.B) {
	reg := NewRegistry()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.EnsureDevice("STA1")
	}
}
