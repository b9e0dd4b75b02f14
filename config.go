package jitter

import (
	"log/slog"

	"github.com/fxredeemer/jitterphysics-sub000/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	DEFAULT_CONTACT_ITERATIONS = 10
	DEFAULT_SMALL_ITERATIONS   = 4
	// Islands with more bodies and constraints than this use the full
	// iteration count
	SMALL_ISLAND_SIZE = 3
)

// WorldConfig holds every simulation parameter of a World.
type WorldConfig struct {
	// Gravity acceleration (m/s²)
	Gravity mgl64.Vec3

	ContactIterations int
	SmallIterations   int

	// Fraction of the velocity kept after one second
	LinearDamping  float64
	AngularDamping float64

	AllowDeactivation bool
	// Seconds an island must stay below the thresholds before sleeping
	DeactivationTime float64
	// Squared speeds
	InactiveLinearThreshold  float64
	InactiveAngularThreshold float64

	// 0 means one thread per logical CPU
	Workers int

	Contact constraint.ContactSettings
}

func DefaultWorldConfig() WorldConfig {
	return WorldConfig{
		Gravity:                  mgl64.Vec3{0, -9.81, 0},
		ContactIterations:        DEFAULT_CONTACT_ITERATIONS,
		SmallIterations:          DEFAULT_SMALL_ITERATIONS,
		LinearDamping:            0.85,
		AngularDamping:           0.85,
		AllowDeactivation:        true,
		DeactivationTime:         2,
		InactiveLinearThreshold:  0.3,
		InactiveAngularThreshold: 0.3,
		Contact:                  constraint.DefaultContactSettings(),
	}
}

type Option func(w *World)

func WithConfig(config WorldConfig) Option {
	return func(w *World) {
		w.config = config
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *World) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithGravity(gravity mgl64.Vec3) Option {
	return func(w *World) {
		w.config.Gravity = gravity
	}
}

func WithWorkers(workers int) Option {
	return func(w *World) {
		w.config.Workers = workers
	}
}
