// Package stream consumes the driver-state event stream and folds it into
// the roster. The engine never mutates driver state on its own; everything
// it knows about drivers arrives through this stream (plus admin actions).
package stream

import (
	"encoding/json"
	"time"

	"github.com/gatiride/gati-platform/engine/errors"
	"github.com/gatiride/gati-platform/engine/validation"
)

// EventType identifies a driver-state stream event.
type EventType string

const (
	EventDriverRegistered EventType = "driver.registered"
	EventStatusChanged    EventType = "driver.status_changed"
	EventVerification     EventType = "driver.verification"
	EventLocationPing     EventType = "driver.location"
	EventRideLifecycle    EventType = "ride.lifecycle"
)

// IsValid reports whether the event type is known.
func (t EventType) IsValid() bool {
	switch t {
	case EventDriverRegistered, EventStatusChanged, EventVerification,
		EventLocationPing, EventRideLifecycle:
		return true
	}
	return false
}

// Envelope is the outer frame of every stream event. Payload is decoded
// per Type.
type Envelope struct {
	Type      EventType       `json:"type" validate:"required"`
	DriverID  string          `json:"driver_id" validate:"required"`
	Timestamp time.Time       `json:"timestamp" validate:"required"`
	Payload   json.RawMessage `json:"payload"`
}

// DriverRegisteredPayload announces a new or re-registered driver.
type DriverRegisteredPayload struct {
	Rating       float64 `json:"rating" validate:"gte=0,lte=5"`
	Verified     bool    `json:"verified"`
	VehicleClass string  `json:"vehicle_class" validate:"required,vehicle_class"`
}

// StatusChangedPayload carries a status transition.
type StatusChangedPayload struct {
	Status  string `json:"status" validate:"required,driver_status"`
	ByAdmin bool   `json:"by_admin"`
}

// VerificationPayload flips the verification flag.
type VerificationPayload struct {
	Verified bool `json:"verified"`
}

// LocationPingPayload is a GPS ping from the driver app.
type LocationPingPayload struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

// RideLifecyclePayload is a ride state transition from the ride service.
type RideLifecyclePayload struct {
	RideID string `json:"ride_id" validate:"required"`
	Event  string `json:"event" validate:"required,ride_status"`
}

// ParseEnvelope decodes and validates the outer frame of a stream event.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.InvalidInput("malformed stream event").WithDetails(map[string]string{
			"error": err.Error(),
		})
	}
	if err := validation.GetValidator().Struct(&env); err != nil {
		return nil, errors.InvalidInput("invalid stream envelope").WithDetails(validation.ValidationErrors(err))
	}
	if !env.Type.IsValid() {
		return nil, errors.InvalidInput("unknown stream event type").WithDetails(map[string]string{
			"type": string(env.Type),
		})
	}
	return &env, nil
}

// decodePayload unmarshals and validates a typed payload.
func decodePayload(env *Envelope, out interface{}) error {
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return errors.InvalidInput("malformed event payload").WithDetails(map[string]string{
			"type":  string(env.Type),
			"error": err.Error(),
		})
	}
	if err := validation.GetValidator().Struct(out); err != nil {
		return errors.InvalidInput("invalid event payload").WithDetails(validation.ValidationErrors(err))
	}
	return nil
}
