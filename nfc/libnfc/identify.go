package libnfc

import (
	"fmt"
	"log"

	"github.com/clausecker/freefare"
	clnfc "github.com/clausecker/nfc/v2"
)

// identifyTags names the Freefare tag families present on the field. It is
// only informational, so failures are logged and ignored.
func identifyTags(d clnfc.Device, logger *log.Logger) []string {
	tags, err := freefare.GetTags(d)
	if err != nil {
		logger.Printf("Error getting tags from freefare.GetTags: %v", err)
		return nil
	}

	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		var family string
		switch tag.(type) {
		case freefare.ClassicTag:
			family = "MIFARE Classic"
		case freefare.DESFireTag:
			family = "MIFARE DESFire"
		case freefare.UltralightTag:
			family = "MIFARE Ultralight"
		default:
			family = fmt.Sprintf("%T", tag)
		}
		names = append(names, fmt.Sprintf("%s %s", family, tag.UID()))
	}
	return names
}
