package quote

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
)

// MountRoutes wires the quote domain under the given router.
func MountRoutes(r chi.Router, service *Service, logger *slog.Logger) {
	handler := NewHandler(logger, service)
	r.Route("/quotes", func(r chi.Router) {
		handler.MountRoutes(r)
	})
}
