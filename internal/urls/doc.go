// Package urls provides centralized constants for every URL and path used
// throughout the application.
//
// Vendor endpoints live here so that a portal change can be absorbed in a
// single location. The feed paths are shared by salus-server and the
// clients that consume it.
//
// Usage:
//
//	import "github.com/muurk/salus/internal/urls"
//
//	endpoint := baseURL + urls.DeviceValues
package urls
