// Package version carries build identity for the loaderctl host tool.
package version

// Build information, injected via -ldflags at link time.
var (
	Version   string
	GitSHA    string
	BuildDate string
)

// APTVersion is the stable version stamped into apt.Table. It is bumped
// whenever a field is appended to the table, never when one is removed
// or reordered.
const APTVersion = 0x108
