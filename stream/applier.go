package stream

import (
	"context"

	"github.com/gatiride/gati-platform/engine/driver"
	"github.com/gatiride/gati-platform/engine/errors"
	"github.com/gatiride/gati-platform/engine/geo"
	"github.com/gatiride/gati-platform/engine/logging"
	"github.com/gatiride/gati-platform/engine/vehicle"
)

// Applier folds decoded stream events into driver state.
type Applier struct {
	writer driver.StateWriter
	logger *logging.Logger
}

// NewApplier creates an applier writing to the given state writer.
func NewApplier(writer driver.StateWriter, logger *logging.Logger) *Applier {
	return &Applier{
		writer: writer,
		logger: logger.WithComponent("stream"),
	}
}

// Apply decodes the envelope's payload and applies it. Malformed or invalid
// events return InvalidInput; state-machine violations surface as Conflict
// from the writer. Both are poison for this event only, not the stream.
func (a *Applier) Apply(ctx context.Context, env *Envelope) error {
	switch env.Type {
	case EventDriverRegistered:
		var p DriverRegisteredPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		return a.writer.Upsert(ctx, &driver.Driver{
			ID:            env.DriverID,
			Status:        driver.StatusOffline,
			Verified:      p.Verified,
			Rating:        p.Rating,
			VehicleClass:  vehicle.Class(p.VehicleClass),
			ActiveRideIDs: make(map[string]struct{}),
		})

	case EventStatusChanged:
		var p StatusChangedPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		return a.writer.SetStatus(ctx, env.DriverID, driver.Status(p.Status), p.ByAdmin)

	case EventVerification:
		var p VerificationPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		return a.writer.SetVerified(ctx, env.DriverID, p.Verified)

	case EventLocationPing:
		var p LocationPingPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		return a.writer.UpdateLocation(ctx, env.DriverID, geo.Point{Lat: p.Lat, Lng: p.Lng}, env.Timestamp)

	case EventRideLifecycle:
		var p RideLifecyclePayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		return a.writer.ApplyRideEvent(ctx, driver.RideEvent{
			RideID:   p.RideID,
			DriverID: env.DriverID,
			Type:     driver.RideEventType(p.Event),
			At:       env.Timestamp,
		})
	}

	return errors.InvalidInput("unknown stream event type").WithDetails(map[string]string{
		"type": string(env.Type),
	})
}

// ApplyRaw parses a raw event body and applies it.
func (a *Applier) ApplyRaw(ctx context.Context, body []byte) error {
	env, err := ParseEnvelope(body)
	if err != nil {
		return err
	}
	return a.Apply(ctx, env)
}
