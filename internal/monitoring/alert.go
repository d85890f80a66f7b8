package monitoring

import (
	"github.com/rs/zerolog/log"
)

// Alert reports an operational problem that needs human attention. Routed to
// the log for now; the log shipper raises the page.
func Alert(message string, labels map[string]string) {
	log.Error().
		Str("alert", message).
		Fields(labels).
		Msg("ALERT: operator attention required")
}
