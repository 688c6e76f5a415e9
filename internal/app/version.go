package app

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
)

// Version is the release version, set at build time with
// -ldflags "-X github.com/agbru/procmon/internal/app.Version=v1.2.3".
var Version = "dev"

// HasVersionFlag reports whether args request the version banner.
// Scanning stops at "--".
func HasVersionFlag(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "--":
			return false
		case "-V", "--V", "-version", "--version":
			return true
		}
	}
	return false
}

// resolvedVersion falls back to the module version recorded by
// "go install" when no version was injected.
func resolvedVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

// PrintVersion writes the version banner to out.
func PrintVersion(out io.Writer) {
	fmt.Fprintf(out, "procmon %s\n", resolvedVersion())
	fmt.Fprintf(out, "  go:       %s\n", runtime.Version())
	fmt.Fprintf(out, "  platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
