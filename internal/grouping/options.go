package grouping

import (
	"github.com/rs/zerolog"
)

// DefaultPositionTolerance is the distance along the slice normal under
// which two slices are considered to sit at the same depth when ordering.
const DefaultPositionTolerance = 1e-10

// DefaultCollisionWarnThreshold is the collision index at which a warning
// is logged for a series.
const DefaultCollisionWarnThreshold = 8

// Options tunes grouping and ordering.
type Options struct {
	// PositionTolerance applies to ordering ties only. Collision detection
	// always compares positions exactly.
	PositionTolerance float64

	// CollisionWarnThreshold logs a warning the first time a series needs
	// this many sibling groups. Zero disables the warning.
	CollisionWarnThreshold int

	// VendorOrders overrides spatial ordering per manufacturer. Nil means
	// DefaultVendorOrders; an empty table disables all overrides.
	VendorOrders VendorOrders

	// Logger receives collision warnings. Nil discards them.
	Logger *zerolog.Logger
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		PositionTolerance:      DefaultPositionTolerance,
		CollisionWarnThreshold: DefaultCollisionWarnThreshold,
		VendorOrders:           DefaultVendorOrders(),
	}
}

func (o Options) withDefaults() Options {
	if o.PositionTolerance < 0 {
		o.PositionTolerance = DefaultPositionTolerance
	}
	if o.VendorOrders == nil {
		o.VendorOrders = DefaultVendorOrders()
	}
	return o
}

func (o Options) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}
