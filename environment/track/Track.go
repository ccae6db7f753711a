// Package track implements a kinematic ring track on which a single
// vehicle drives. It stands in for a full driving simulation so that
// agents can be trained and tested without one.
package track

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	env "github.com/samuelfneumann/autoracer/environment"
	ts "github.com/samuelfneumann/autoracer/timestep"
	"github.com/samuelfneumann/autoracer/utils/floatutils"
)

// Discrete actions
const (
	SteerLeft int = iota
	SteerRight
	Accelerate
	Brake

	NumActions
)

// Sensors is the number of distance sensors on the vehicle
const Sensors = 7

// ObservationDim is the length of an observation: one reading per
// sensor, then speed, then progress
const ObservationDim = Sensors + 2

// ErrVehicleCount is returned when the track is observed or stepped
// while it does not hold exactly one controllable vehicle
var ErrVehicleCount = errors.New("track does not hold exactly one vehicle")

// sensorAngles are the sensor directions relative to the heading
var sensorAngles = [Sensors]float64{
	-math.Pi / 2, -math.Pi / 3, -math.Pi / 6, 0, math.Pi / 6, math.Pi / 3,
	math.Pi / 2,
}

// Config describes the geometry and vehicle dynamics of a Track
type Config struct {
	Radius       float64 `mapstructure:"radius"`        // centerline radius, m
	HalfWidth    float64 `mapstructure:"half_width"`    // m
	SensorRange  float64 `mapstructure:"sensor_range"`  // m
	MaxSpeed     float64 `mapstructure:"max_speed"`     // m/s
	Acceleration float64 `mapstructure:"acceleration"`  // m/s²
	Braking      float64 `mapstructure:"braking"`       // m/s²
	SteerRate    float64 `mapstructure:"steer_rate"`    // rad/s
	Drag         float64 `mapstructure:"drag"`          // fraction of speed lost per second
	Dt           float64 `mapstructure:"dt"`            // seconds per tick
	CrashPenalty float64 `mapstructure:"crash_penalty"` // reward lost on leaving the track

	// Starting positions are jittered uniformly by up to StartJitter
	// of the half width laterally and StartJitter radians of heading
	StartJitter float64 `mapstructure:"start_jitter"`
	Seed        uint64  `mapstructure:"seed"`
}

// DefaultConfig returns the default Track configuration
func DefaultConfig() Config {
	return Config{
		Radius:       20,
		HalfWidth:    4,
		SensorRange:  15,
		MaxSpeed:     12,
		Acceleration: 4,
		Braking:      8,
		SteerRate:    1.5,
		Drag:         0.1,
		Dt:           0.05,
		CrashPenalty: 1,
		StartJitter:  0,
	}
}

// Validate returns an error if the configuration describes an
// impossible track
func (c Config) Validate() error {
	if c.Radius <= 0 || c.HalfWidth <= 0 || c.HalfWidth >= c.Radius {
		return fmt.Errorf("track half width %v must be in (0, radius=%v)",
			c.HalfWidth, c.Radius)
	}
	if c.Dt <= 0 || c.SensorRange <= 0 || c.MaxSpeed <= 0 {
		return fmt.Errorf("dt, sensor range and max speed must be positive")
	}
	if c.StartJitter < 0 || c.StartJitter >= 1 {
		return fmt.Errorf("start jitter must be in [0, 1), have(%v)",
			c.StartJitter)
	}
	return nil
}

// Track implements a ring shaped track centered on the origin. The
// vehicle drives counter-clockwise. Each tick it receives the distance
// it progressed along the centerline as reward. Leaving the track
// costs CrashPenalty and returns the vehicle to the start line with
// its progress cleared.
//
// Actions are discrete:
//
//	Action	Meaning
//	  0		Steer left
//	  1		Steer right
//	  2		Accelerate
//	  3		Brake
type Track struct {
	Config
	starter env.Starter

	vehicles int
	x, y     float64
	heading  float64
	speed    float64
	angle    float64 // polar angle of the vehicle
	progress float64
	crashes  int

	lastStep ts.TimeStep
}

// New constructs a new Track holding one vehicle at the start line
func New(c Config) (*Track, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	t := &Track{Config: c, vehicles: 1}
	if c.StartJitter > 0 {
		lateral := c.StartJitter * c.HalfWidth
		bounds := []r1.Interval{
			{Min: -lateral, Max: lateral},
			{Min: -c.StartJitter, Max: c.StartJitter},
		}
		t.starter = env.NewUniformStarter(bounds, c.Seed)
	}
	t.reset()
	t.lastStep = ts.New(ts.First, 0, t.observation(), 0)

	return t, nil
}

// SetVehicles sets the number of controllable vehicles on the track.
// The simulated vehicle is only driven while there is exactly one.
func (t *Track) SetVehicles(n int) {
	t.vehicles = n
}

// Vehicles implements the environment.Environment interface
func (t *Track) Vehicles() int {
	return t.vehicles
}

// Crashes returns the number of times the vehicle has left the track
func (t *Track) Crashes() int {
	return t.crashes
}

// Observe implements the environment.Environment interface
func (t *Track) Observe() (ts.TimeStep, error) {
	if t.vehicles != 1 {
		return ts.TimeStep{}, fmt.Errorf("observe: %w", ErrVehicleCount)
	}
	return t.lastStep, nil
}

// Step implements the environment.Environment interface
func (t *Track) Step(action int) (ts.TimeStep, error) {
	if t.vehicles != 1 {
		return ts.TimeStep{}, fmt.Errorf("step: %w", ErrVehicleCount)
	}
	if action < 0 || action >= NumActions {
		return ts.TimeStep{}, fmt.Errorf("step: illegal action %v ∉ "+
			"[0, %d)", action, NumActions)
	}

	switch action {
	case SteerLeft:
		t.heading += t.SteerRate * t.Dt
	case SteerRight:
		t.heading -= t.SteerRate * t.Dt
	case Accelerate:
		t.speed += t.Acceleration * t.Dt
	case Brake:
		t.speed -= t.Braking * t.Dt
	}
	t.speed *= 1 - t.Drag*t.Dt
	t.speed = floatutils.Clip(t.speed, 0, t.MaxSpeed)

	// Euler kinematic integration
	t.x += t.Dt * t.speed * math.Cos(t.heading)
	t.y += t.Dt * t.speed * math.Sin(t.heading)

	angle := math.Atan2(t.y, t.x)
	reward := wrapAngle(angle-t.angle) * t.Radius
	t.angle = angle
	t.progress += reward

	if r := math.Hypot(t.x, t.y); math.Abs(r-t.Radius) > t.HalfWidth {
		reward -= t.CrashPenalty
		t.crashes++
		t.reset()
	}

	t.lastStep = ts.New(ts.Mid, reward, t.observation(),
		t.lastStep.Number+1)
	return t.lastStep, nil
}

// ObservationSpec implements the environment.Environment interface
func (t *Track) ObservationSpec() env.Spec {
	lower := make([]float64, ObservationDim)
	upper := make([]float64, ObservationDim)
	for i := 0; i < Sensors; i++ {
		upper[i] = t.SensorRange
	}
	upper[Sensors] = t.MaxSpeed
	lower[Sensors+1] = math.Inf(-1)
	upper[Sensors+1] = math.Inf(1)

	return env.NewSpec(
		mat.NewVecDense(ObservationDim, nil),
		env.Observation,
		mat.NewVecDense(ObservationDim, lower),
		mat.NewVecDense(ObservationDim, upper),
		env.Continuous,
	)
}

// ActionSpec implements the environment.Environment interface
func (t *Track) ActionSpec() env.Spec {
	return env.NewDiscreteActionSpec(NumActions)
}

// String implements the fmt.Stringer interface
func (t *Track) String() string {
	msg := "Track  |  Position: (%.2f, %.2f)  |  Heading: %.2f  |  " +
		"Speed: %.2f  |  Progress: %.2f"
	return fmt.Sprintf(msg, t.x, t.y, t.heading, t.speed, t.progress)
}

// reset places the vehicle at rest on the start line facing along the
// track
func (t *Track) reset() {
	var lateral, heading float64
	if t.starter != nil {
		start := t.starter.Start()
		lateral, heading = start.AtVec(0), start.AtVec(1)
	}

	t.x, t.y = t.Radius+lateral, 0
	t.heading = math.Pi/2 + heading
	t.speed = 0
	t.angle = 0
	t.progress = 0
}

// observation returns the current sensor readings, speed and progress
func (t *Track) observation() []float64 {
	obs := make([]float64, ObservationDim)
	for i, rel := range sensorAngles {
		obs[i] = t.sense(t.heading + rel)
	}
	obs[Sensors] = t.speed
	obs[Sensors+1] = t.progress
	return obs
}

// sense returns the distance from the vehicle to the nearest track
// boundary along direction dir, capped at the sensor range
func (t *Track) sense(dir float64) float64 {
	dx, dy := math.Cos(dir), math.Sin(dir)
	dist := t.SensorRange
	for _, radius := range []float64{t.Radius - t.HalfWidth,
		t.Radius + t.HalfWidth} {
		if d, ok := rayCircle(t.x, t.y, dx, dy, radius); ok && d < dist {
			dist = d
		}
	}
	return dist
}

// rayCircle returns the distance along the unit ray (x, y) + s(dx, dy),
// s ≥ 0, to its first intersection with the circle of the given radius
// centered on the origin
func rayCircle(x, y, dx, dy, radius float64) (float64, bool) {
	b := x*dx + y*dy
	c := x*x + y*y - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}

	root := math.Sqrt(disc)
	if s := -b - root; s >= 0 {
		return s, true
	}
	if s := -b + root; s >= 0 {
		return s, true
	}
	return 0, false
}

// wrapAngle wraps an angle to (-π, π]
func wrapAngle(th float64) float64 {
	for th > math.Pi {
		th -= 2 * math.Pi
	}
	for th <= -math.Pi {
		th += 2 * math.Pi
	}
	return th
}
