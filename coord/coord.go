package coord

import (
	"math"

	"github.com/alice-sync/presence/hash"
)

// directionEpsilon is the minimum separation below which the unit
// direction between two coordinates is considered degenerate.
const directionEpsilon = 1e-9

// Coord is a Vivaldi network coordinate: a 2D position plus a height
// term absorbing access-link latency that the plane cannot explain.
//
// Distance model: sqrt((x1-x2)^2 + (y1-y2)^2) + h1 + h2.
// The height is always >= 0.
type Coord struct {
	X float64
	Y float64
	H float64
}

// New returns a coordinate with zero height.
func New(x, y float64) Coord {
	return Coord{X: x, Y: y}
}

// NewWithHeight returns a coordinate with an explicit height term,
// clamped to be non-negative.
func NewWithHeight(x, y, h float64) Coord {
	if h < 0 {
		h = 0
	}
	return Coord{X: x, Y: y, H: h}
}

// Distance returns the Vivaldi distance to other: the Euclidean plane
// distance plus both height terms.
func (c Coord) Distance(other Coord) float64 {
	return c.Distance2D(other) + c.H + other.H
}

// Distance2D returns the plane distance to other, ignoring heights.
// This is the metric used by the spatial index.
func (c Coord) Distance2D(other Coord) float64 {
	dx := c.X - other.X
	dy := c.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Digest returns the mixing-function digest of the coordinate's
// 24-byte little-endian serialization.
func (c Coord) Digest() uint64 {
	m := hash.New()
	m.WriteUint64(math.Float64bits(c.X))
	m.WriteUint64(math.Float64bits(c.Y))
	m.WriteUint64(math.Float64bits(c.H))
	return m.Sum64()
}

// UpdateConfig holds the tunables of the coordinate update law.
type UpdateConfig struct {
	// HeightCoupling is the coefficient of the height update term.
	HeightCoupling float64
	// DeltaClamp caps the magnitude of a single position update.
	DeltaClamp float64
}

// DefaultUpdateConfig returns the standard update tunables.
func DefaultUpdateConfig() UpdateConfig {
	return UpdateConfig{
		HeightCoupling: 0.1,
		DeltaClamp:     1.0,
	}
}

// Update applies one Vivaldi step toward the measured rtt and returns
// the moved coordinate. w is the sample weight; callers tracking
// per-node confidence can derive it with Weight.
func (c Coord) Update(remote Coord, rtt, w float64, cfg UpdateConfig) Coord {
	predicted := c.Distance(remote)
	sampleError := rtt - predicted

	ux, uy := c.direction(remote)

	delta := w * sampleError
	if delta > cfg.DeltaClamp {
		delta = cfg.DeltaClamp
	} else if delta < -cfg.DeltaClamp {
		delta = -cfg.DeltaClamp
	}

	c.X += delta * ux
	c.Y += delta * uy
	c.H = math.Max(0, c.H+delta*cfg.HeightCoupling)
	return c
}

// direction returns the unit vector pointing from remote toward c.
// When the two points (nearly) coincide the direction is degenerate and
// a unit vector is drawn deterministically from the coordinate digest,
// so repeated co-located updates still separate the nodes.
func (c Coord) direction(remote Coord) (float64, float64) {
	dx := c.X - remote.X
	dy := c.Y - remote.Y
	norm := math.Sqrt(dx*dx + dy*dy)
	if norm < directionEpsilon {
		angle := 2 * math.Pi * (float64(c.Digest()) / float64(math.MaxUint64))
		return math.Cos(angle), math.Sin(angle)
	}
	return dx / norm, dy / norm
}

// Weight derives the sample weight from local and remote confidence:
// confidence_local / (confidence_local + confidence_remote).
// With no confidence on either side the sample is weighted evenly.
func Weight(localConf, remoteConf float64) float64 {
	sum := localConf + remoteConf
	if sum <= 0 {
		return 0.5
	}
	return localConf / sum
}
