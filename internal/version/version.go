// ABOUTME: Version information for the player
// ABOUTME: Product and build identifiers shown in logs and the TUI
package version

const (
	// Version is the current release
	Version = "0.1.0"

	// Product is the name reported in logs
	Product = "audout"

	// Manufacturer identifies the maintainers
	Manufacturer = "Resonate Protocol"
)

// String returns the product and version as printed by -version
func String() string {
	return Product + " " + Version
}
