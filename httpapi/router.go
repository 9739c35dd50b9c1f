package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/gatiride/gati-platform/engine/errors"
	"github.com/gatiride/gati-platform/engine/geo"
	"github.com/gatiride/gati-platform/engine/logging"
	"github.com/gatiride/gati-platform/engine/telemetry"
)

// maxBodyBytes caps request bodies. Shape documents are the largest
// payload and stay far under this.
const maxBodyBytes = 1 << 20

// NewRouter wires the API routes. tracer may be nil to skip tracing.
func NewRouter(api *API, logger *logging.Logger, tracer trace.Tracer) http.Handler {
	r := chi.NewRouter()

	r.Use(RealIP)
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))
	r.Use(SecurityHeaders)
	r.Use(Timeout(30 * time.Second))
	if tracer != nil {
		r.Use(telemetry.TracingMiddleware(tracer))
	}

	r.Get("/healthz", api.checker.LivenessHandler())
	r.Get("/readyz", api.checker.ReadinessHandler())
	r.Get("/health", api.checker.HealthHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/quotes", api.handleQuote)
		r.Post("/quotes/cancellation", api.handleCancellationQuote)
		r.Post("/dispatch", api.handleDispatch)
		r.Post("/dispatch/preview", api.handlePreviewDispatch)
		r.Get("/serviceability", api.handleServiceability)

		r.Post("/driver-events", api.handleDriverEvent)
		r.Get("/drivers/{id}", api.handleGetDriver)
		r.Patch("/drivers/{id}/suspension", api.handleSuspendDriver)

		r.Route("/zones", func(r chi.Router) {
			r.Get("/", api.handleListZones)
			r.Post("/", api.handleCreateZone)
			r.Get("/{id}", api.handleGetZone)
			r.Patch("/{id}/active", api.handleToggleZone)
			r.Delete("/{id}", api.handleDeleteZone)
		})

		r.Route("/fares", func(r chi.Router) {
			r.Get("/", api.handleListFareRules)
			r.Put("/", api.handleUpsertFareRule)
			r.Delete("/{booking_type}/{vehicle_class}", api.handleDeleteFareRule)
		})
	})

	return r
}

// pathParam returns a chi URL parameter.
func pathParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// readBody reads a size-capped request body.
func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.InvalidInput("failed to read request body")
	}
	return body, nil
}

// parsePointQuery reads lat/lng query parameters.
func parsePointQuery(r *http.Request) (geo.Point, error) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		return geo.Point{}, errors.InvalidInput("lat must be a number")
	}
	lng, err := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err != nil {
		return geo.Point{}, errors.InvalidInput("lng must be a number")
	}

	p := geo.Point{Lat: lat, Lng: lng}
	if !p.IsValid() {
		return geo.Point{}, errors.InvalidInput("lat/lng out of range")
	}
	return p, nil
}
