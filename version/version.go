package version

// set at build time via -ldflags "-X github.com/updraftio/updraft/version.version=..."
var version = "development"

// UpdraftVersion returns the client version set at build time
func UpdraftVersion() string {
	return version
}
