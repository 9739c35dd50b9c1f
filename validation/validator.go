// Package validation provides input validation for engine DTOs.
package validation

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/gatiride/gati-platform/engine/vehicle"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// GetValidator returns the singleton validator instance.
func GetValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()

		// Use JSON tag names for error messages
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		registerCustomValidations(validate)
	})

	return validate
}

func registerCustomValidations(v *validator.Validate) {
	// Latitude validation
	v.RegisterValidation("latitude", validateLatitude)

	// Longitude validation
	v.RegisterValidation("longitude", validateLongitude)

	// Booking type validation
	v.RegisterValidation("booking_type", validateBookingType)

	// Vehicle class validation
	v.RegisterValidation("vehicle_class", validateVehicleClass)

	// Driver status validation
	v.RegisterValidation("driver_status", validateDriverStatus)

	// Ride lifecycle status validation
	v.RegisterValidation("ride_status", validateRideStatus)

	// Shape kind validation
	v.RegisterValidation("shape_kind", validateShapeKind)
}

// Latitude validates latitude values (-90 to 90).
func validateLatitude(fl validator.FieldLevel) bool {
	lat := fl.Field().Float()
	return lat >= -90 && lat <= 90
}

// Longitude validates longitude values (-180 to 180).
func validateLongitude(fl validator.FieldLevel) bool {
	lng := fl.Field().Float()
	return lng >= -180 && lng <= 180
}

// Booking types.
var validBookingTypes = map[string]bool{
	"regular":         true,
	"rental":          true,
	"outstation":      true,
	"outstation_slab": true,
	"airport":         true,
}

func validateBookingType(fl validator.FieldLevel) bool {
	return validBookingTypes[fl.Field().String()]
}

func validateVehicleClass(fl validator.FieldLevel) bool {
	return vehicle.Class(fl.Field().String()).IsValid()
}

// Driver statuses.
var validDriverStatuses = map[string]bool{
	"offline":   true,
	"online":    true,
	"busy":      true,
	"suspended": true,
}

func validateDriverStatus(fl validator.FieldLevel) bool {
	return validDriverStatuses[fl.Field().String()]
}

// Ride lifecycle statuses.
var validRideStatuses = map[string]bool{
	"requested":      true,
	"accepted":       true,
	"driver_arrived": true,
	"in_progress":    true,
	"completed":      true,
	"cancelled":      true,
}

func validateRideStatus(fl validator.FieldLevel) bool {
	return validRideStatuses[fl.Field().String()]
}

// Shape kinds.
var validShapeKinds = map[string]bool{
	"circle":  true,
	"polygon": true,
}

func validateShapeKind(fl validator.FieldLevel) bool {
	return validShapeKinds[fl.Field().String()]
}

// ValidationErrors converts validator errors to a field->message map.
func ValidationErrors(err error) map[string]string {
	result := make(map[string]string)

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldErr := range validationErrors {
			result[fieldErr.Field()] = validationMessage(fieldErr)
		}
	}

	return result
}

func validationMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "this field is required"
	case "latitude":
		return "must be a valid latitude (-90 to 90)"
	case "longitude":
		return "must be a valid longitude (-180 to 180)"
	case "booking_type":
		return "must be a valid booking type"
	case "vehicle_class":
		return "must be a valid vehicle class"
	case "driver_status":
		return "must be a valid driver status"
	case "ride_status":
		return "must be a valid ride status"
	case "shape_kind":
		return "must be circle or polygon"
	case "min":
		return "value is below the minimum of " + fieldErr.Param()
	case "max":
		return "value exceeds the maximum of " + fieldErr.Param()
	case "gt":
		return "must be greater than " + fieldErr.Param()
	case "gte":
		return "must be greater than or equal to " + fieldErr.Param()
	default:
		return "invalid value"
	}
}
