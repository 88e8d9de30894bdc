package memmap

import "fmt"

// Version constants
const (
	// Major is the major version number
	Major = 0

	// Minor is the minor version number
	Minor = 1

	// Patch is the patch version number
	Patch = 0
)

// Version returns the version string of memmap.
func Version() string {
	return fmt.Sprintf("memmap %d.%d.%d", Major, Minor, Patch)
}
