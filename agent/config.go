package agent

import (
	"errors"
	"flag"
	"strconv"
)

// Config holds the bounds and paths the core consumes, per spec §6. Fields
// mirror the config keys the core recognizes; CustomFlags is an escape hatch
// for embedder-specific settings the core itself never reads.
type Config struct {
	WorkingDirectory string

	MaxFrames       int
	MaxExpandFrames int
	MaxProperties   int
	MaxStringLength int

	LogLevel string

	// BreakpointExpirationSec is consumed by the external registration loop,
	// not the core; it is carried here only so the Facade can stamp
	// Breakpoint.ExpiresAtUnixSec for that loop's convenience.
	BreakpointExpirationSec int

	// CustomFlags carries embedder-specific settings the core does not
	// interpret, following the teacher's escape-hatch pattern.
	CustomFlags map[string]string
}

// DefaultConfig returns bounds matched to the scenarios in spec §8: generous
// enough to exercise real programs, small enough to bound a pathological
// capture.
func DefaultConfig(workingDirectory string) Config {
	return Config{
		WorkingDirectory:        workingDirectory,
		MaxFrames:               20,
		MaxExpandFrames:         5,
		MaxProperties:           100,
		MaxStringLength:         1024,
		LogLevel:                "info",
		BreakpointExpirationSec: 3600,
		CustomFlags:             make(map[string]string),
	}
}

// CustomFlag defines an additional CLI option an embedder wants folded into
// Config.CustomFlags, following the teacher's lens/cmd/flags.go shape.
type CustomFlag struct {
	Name         string
	DefaultValue any
	Usage        string
	Type         string // "string", "int", "bool"
}

// ParseFlags builds a Config from standard and custom flags. It performs no
// I/O beyond flag.Parse(); filesystem validation of WorkingDirectory is left
// to the Source Scanner.
func ParseFlags(customFlags []CustomFlag) (*Config, error) {
	workingDirectory := flag.String("workingDirectory", "", "Path to the project directory to scan for source files")
	maxFrames := flag.Int("capture.maxFrames", 20, "Maximum number of stack frames reported per snapshot")
	maxExpandFrames := flag.Int("capture.maxExpandFrames", 5, "Number of topmost frames expanded inline")
	maxProperties := flag.Int("capture.maxProperties", 100, "Maximum members materialized per compound value")
	maxStringLength := flag.Int("capture.maxStringLength", 1024, "Maximum rendered string length before truncation")
	logLevel := flag.String("logLevel", "info", "Logging verbosity")
	breakpointExpirationSec := flag.Int("breakpointExpirationSec", 3600, "Seconds the registration loop keeps a breakpoint before requesting removal")

	customPtrs := make(map[string]any, len(customFlags))
	for _, cf := range customFlags {
		switch cf.Type {
		case "string":
			customPtrs[cf.Name] = flag.String(cf.Name, cf.DefaultValue.(string), cf.Usage)
		case "int":
			customPtrs[cf.Name] = flag.Int(cf.Name, cf.DefaultValue.(int), cf.Usage)
		case "bool":
			customPtrs[cf.Name] = flag.Bool(cf.Name, cf.DefaultValue.(bool), cf.Usage)
		}
	}

	flag.Parse()

	if *workingDirectory == "" {
		return nil, errors.New("usage: -workingDirectory <path to project root>")
	}

	config := DefaultConfig(*workingDirectory)
	config.MaxFrames = *maxFrames
	config.MaxExpandFrames = *maxExpandFrames
	config.MaxProperties = *maxProperties
	config.MaxStringLength = *maxStringLength
	config.LogLevel = *logLevel
	config.BreakpointExpirationSec = *breakpointExpirationSec

	for name, ptr := range customPtrs {
		switch v := ptr.(type) {
		case *string:
			config.CustomFlags[name] = *v
		case *int:
			config.CustomFlags[name] = strconv.Itoa(*v)
		case *bool:
			config.CustomFlags[name] = strconv.FormatBool(*v)
		}
	}

	return &config, nil
}
