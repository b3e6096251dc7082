// Package plugin defines the plugin contract, the runtime registry with
// activation and lifecycle guarantees, the notification bus, and the data
// coordinator that assembles per-plugin exports into a scan bundle.
package plugin

import (
	"github.com/repolens/repolens/pkg/event"
	"github.com/repolens/repolens/pkg/export"
	"github.com/repolens/repolens/pkg/queue"
)

// APIVersion is the plugin API version this runtime speaks.
const APIVersion = "1.0"

// Type classifies a plugin's role.
type Type int

// Plugin types.
const (
	Processing Type = iota
	Output
	Notification
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case Processing:
		return "processing"
	case Output:
		return "output"
	case Notification:
		return "notification"
	default:
		return "unknown"
	}
}

// Info describes a plugin to the runtime and to users.
type Info struct {
	Name            string
	Version         string
	APIVersion      string
	Description     string
	Author          string
	Type            Type
	Capabilities    []string
	ActiveByDefault bool
}

// Function is one operation a plugin advertises. Exactly one function per
// plugin has IsDefault set.
type Function struct {
	Name        string
	Description string
	IsDefault   bool
}

// ScannerConfig carries the scan-wide runtime limits plugins may consult.
type ScannerConfig struct {
	RepositoryPath  string
	MaxMemoryBytes  int64
	QueueCapacity   int
	PerformanceMode bool
	Backoff         queue.Backoff
}

// Context is handed to each plugin at initialization.
type Context struct {
	ScannerConfig ScannerConfig
	QueryParams   event.QueryParams
	Bus           *Bus
	ScanID        string
}

// Request asks a plugin to execute one of its advertised functions.
type Request struct {
	FunctionName string
	Args         map[string]string
}

// Response is a plugin's answer to Execute: either an export, or empty when
// the plugin already published via the notification bus.
type Response struct {
	Export *export.PluginDataExport
}

// Plugin is any component pluggable into the runtime.
type Plugin interface {
	// PluginInfo describes the plugin.
	PluginInfo() Info

	// AdvertisedFunctions lists the callable operations.
	AdvertisedFunctions() []Function

	// Initialize is called at most once per plugin per process, before any
	// Execute.
	Initialize(ctx *Context) error

	// Execute runs one advertised function.
	Execute(req Request) (Response, error)

	// Cleanup releases plugin resources. It must be idempotent.
	Cleanup() error
}
