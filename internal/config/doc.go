// Package config provides user configuration management for the Salus tools.
//
// This package manages a YAML-based configuration file that stores the portal
// login email, metadata for each thermostat (name, wired zones, last seen
// state) and application preferences such as the poll interval.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/salus/config.yaml or $HOME/.config/salus/config.yaml
//   - macOS: $HOME/.config/salus/config.yaml
//   - Windows: %LOCALAPPDATA%\salus\config.yaml
//
// # Security
//
// IMPORTANT: The portal password is NEVER stored. Commands read it from
// SALUS_PASSWORD or prompt for it.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry.SetAccount("me@example.com", "")
//	registry.EnsureDevice("STA00012345").Name = "Hallway"
//
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config
