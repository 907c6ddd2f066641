package debug

import (
	"fmt"
	"os"
)

// Enabled indicates whether debug mode is active
// This is set by the root command when --debug flag is provided
var Enabled bool

// Log writes a debug message to stderr if debug mode is enabled
// Format: "DEBUG: <message>"
func Log(format string, args ...interface{}) {
	if Enabled {
		fmt.Fprintf(os.Stderr, "DEBUG: "+format+"\n", args...)
	}
}

// LogError writes a debug error message to stderr if debug mode is enabled
// Format: "DEBUG: [context] error: <error>"
func LogError(err error, context string) {
	if Enabled && err != nil {
		fmt.Fprintf(os.Stderr, "DEBUG: [%s] error: %v\n", context, err)
	}
}

// LogReload writes a debug message about a snapshot publication.
// Includes the trigger (full reload vs incremental edit), the resulting
// version, and the path for incremental edits.
func LogReload(kind string, version int64, path string) {
	if Enabled {
		if path == "" {
			fmt.Fprintf(os.Stderr, "DEBUG: snapshot published\n")
		} else {
			fmt.Fprintf(os.Stderr, "DEBUG: snapshot published\n")
			fmt.Fprintf(os.Stderr, "  Path: %s\n", path)
		}
		fmt.Fprintf(os.Stderr, "  Kind: %s\n", kind)
		fmt.Fprintf(os.Stderr, "  Version: %d\n", version)
	}
}
