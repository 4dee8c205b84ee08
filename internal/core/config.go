package core

import (
	"time"

	"go.uber.org/zap"
)

// Engine names accepted by Config.Engine.
const (
	EngineQuickJS = "quickjs"
	EngineGoja    = "goja"
	EngineV8      = "v8"
)

// Loader selects how source text is prepared before it is installed.
type Loader int

const (
	LoaderJS     Loader = iota // plain script, syntax-checked only
	LoaderTS                   // TypeScript, types stripped
	LoaderModule               // ES module, exports become globals
)

func (l Loader) String() string {
	switch l {
	case LoaderJS:
		return "js"
	case LoaderTS:
		return "ts"
	case LoaderModule:
		return "module"
	default:
		return "unknown"
	}
}

const (
	DefaultCallTimeout        = 30 * time.Second
	DefaultMaxDrainIterations = 100000
	DefaultMaxLogEntries      = 10000
	DefaultMaxLogMessageSize  = 4096
)

// Config holds per-Context configuration.
type Config struct {
	Engine             string        // quickjs, goja or v8
	MemoryLimitMB      int           // per-engine memory limit, 0 for none
	CallTimeout        time.Duration // bound on one call including draining, 0 disables
	MaxDrainIterations int           // drain loop iterations before TimedOut
	AutoAwait          bool          // settle thenable results before returning
	VirtualTime        bool          // timers advance a mock clock instead of sleeping
	Loader             Loader
	Filename           string // used in diagnostics
	MaxLogEntries      int
	MaxLogMessageSize  int
	RejectConcurrent   bool // ErrBusy instead of queueing
	ConsoleMirror      bool // forward captured console lines to Logger
	EngineFlags        []string
	Logger             *zap.Logger
}

// DefaultConfig returns the configuration used when no options are given.
func DefaultConfig() Config {
	return Config{
		Engine:             EngineQuickJS,
		CallTimeout:        DefaultCallTimeout,
		MaxDrainIterations: DefaultMaxDrainIterations,
		AutoAwait:          true,
		Loader:             LoaderJS,
		Filename:           "<compile>",
		MaxLogEntries:      DefaultMaxLogEntries,
		MaxLogMessageSize:  DefaultMaxLogMessageSize,
		Logger:             zap.NewNop(),
	}
}
