package booking

import (
	"strings"

	"github.com/google/uuid"
)

// NewPNR returns a passenger name record such as PNR-3F2A9C1B.
func NewPNR() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "PNR-" + strings.ToUpper(hex[:8])
}
