// Package buildinfo holds application metadata that can be set at build time:
//
//	go build -ldflags "\
//	  -X github.com/dotside-studios/nfc-handoff-agent/buildinfo.Version=1.0.0 \
//	  -X github.com/dotside-studios/nfc-handoff-agent/buildinfo.Commit=$(git rev-parse --short HEAD)"
package buildinfo

import "fmt"

var (
	// Name is the technical application name, also used as the mDNS instance.
	Name = "nfc-handoff-agent"

	Description = "Exchanges a Bluetooth address with a nearby NFC peer"

	// Version is set via ldflags for releases.
	Version = "dev"

	Commit = ""
)

// FullVersion returns "dev", "1.0.0" or "1.0.0 (abc1234)".
func FullVersion() string {
	if Commit != "" {
		return fmt.Sprintf("%s (%s)", Version, Commit)
	}
	return Version
}
