// Package vehicle provides vehicle classification for ride matching.
package vehicle

// Class represents the vehicle class requested for a trip or offered by a driver.
type Class string

const (
	ClassBike      Class = "bike"      // Two-wheeler taxi
	ClassAuto      Class = "auto"      // Auto rickshaw
	ClassHatchback Class = "hatchback" // Compact cars (Swift, i10, etc.)
	ClassSedan     Class = "sedan"     // Dzire, Etios, Amaze, etc.
	ClassSUV       Class = "suv"       // Ertiga, Innova (6+ passengers)
	ClassPremium   Class = "premium"   // Luxury vehicles (Camry, BMW, Mercedes)
)

// AllClasses returns all valid vehicle classes.
func AllClasses() []Class {
	return []Class{
		ClassBike,
		ClassAuto,
		ClassHatchback,
		ClassSedan,
		ClassSUV,
		ClassPremium,
	}
}

// IsValid checks if the vehicle class is valid.
func (c Class) IsValid() bool {
	switch c {
	case ClassBike, ClassAuto, ClassHatchback, ClassSedan, ClassSUV, ClassPremium:
		return true
	}
	return false
}

// String returns the string representation of the vehicle class.
func (c Class) String() string {
	return string(c)
}

// DisplayName returns a human-readable name for the vehicle class.
func (c Class) DisplayName() string {
	switch c {
	case ClassBike:
		return "Bike"
	case ClassAuto:
		return "Auto"
	case ClassHatchback:
		return "Hatchback"
	case ClassSedan:
		return "Sedan"
	case ClassSUV:
		return "SUV"
	case ClassPremium:
		return "Premium"
	default:
		return "Unknown"
	}
}

// MaxPassengers returns the maximum number of passengers for this vehicle class.
func (c Class) MaxPassengers() int {
	switch c {
	case ClassBike:
		return 1
	case ClassAuto:
		return 3
	case ClassSUV:
		return 6
	default:
		return 4
	}
}

// Hierarchy returns the hierarchy level (higher = more premium). Used when
// deciding whether a bigger car may serve a smaller request.
func (c Class) Hierarchy() int {
	switch c {
	case ClassBike:
		return 1
	case ClassAuto:
		return 2
	case ClassHatchback:
		return 3
	case ClassSedan:
		return 4
	case ClassSUV:
		return 5
	case ClassPremium:
		return 6
	default:
		return 0
	}
}

// CanFulfill checks if this vehicle class can serve a request for the target
// class. Four-wheelers may serve one step down; bikes and autos only serve
// their own class, and SUV capacity cannot be substituted.
func (c Class) CanFulfill(target Class) bool {
	if c == target {
		return true
	}

	switch target {
	case ClassBike, ClassAuto:
		// Two- and three-wheelers are their own categories.
		return false
	case ClassHatchback:
		return c == ClassSedan
	case ClassSedan:
		return c == ClassPremium
	case ClassSUV:
		// Need the seats; nothing substitutes.
		return false
	case ClassPremium:
		return false
	default:
		return false
	}
}
