// Package initwfn implements seeded weight initializers for Gorgonia
// graphs. Initializers are described by configs and can be looked up
// by name, so that they can be chosen in configuration files.
package initwfn

import (
	"fmt"
	"strings"

	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Type describes different types of InitWFn that are available.
// Type is used to implement a basic type system of InitWFn's.
type Type string

// Available InitWFn types
const (
	GlorotU Type = "GlorotU"
	GlorotN Type = "GlorotN"
	HeU     Type = "HeU"
	HeN     Type = "HeN"
	FanIn   Type = "FanIn"
	Zeroes  Type = "Zeroes"
	Ones    Type = "Ones"
)

// types lists every Type that New can create
var types = []Type{GlorotU, GlorotN, HeU, HeN, FanIn, Zeroes, Ones}

// InitWFn wraps a seeded weight initialization algorithm together with
// the type of algorithm it is.
type InitWFn struct {
	Type
	Config
}

// newInitWFn returns a new InitWFn
func newInitWFn(c Config) (*InitWFn, error) {
	return &InitWFn{Type: c.Type(), Config: c}, nil
}

// New returns the InitWFn of the named type with default parameters
func New(t Type) (*InitWFn, error) {
	switch t {
	case GlorotU:
		return NewGlorotU(1.0)
	case GlorotN:
		return NewGlorotN(1.0)
	case HeU:
		return NewHeU(1.0)
	case HeN:
		return NewHeN(1.0)
	case FanIn:
		return NewFanIn()
	case Zeroes:
		return NewZeroes()
	case Ones:
		return NewOnes()
	}
	return nil, fmt.Errorf("new: unknown initializer type %q", t)
}

// Parse returns the InitWFn with default parameters whose type name
// matches name, ignoring case
func Parse(name string) (*InitWFn, error) {
	for _, t := range types {
		if strings.EqualFold(string(t), name) {
			return New(t)
		}
	}
	return nil, fmt.Errorf("parse: unknown initializer %q", name)
}

// InitWFn returns a Gorgonia InitWFn drawing from an RNG seeded with
// seed. Successive calls of the returned function continue the same
// random stream, so a network initialized layer by layer with one
// returned function is reproducible from the seed alone.
func (i *InitWFn) InitWFn(seed uint64) G.InitWFn {
	return i.Config.Create(rand.NewSource(seed))
}

// String implements the fmt.Stringer interface
func (i *InitWFn) String() string {
	return fmt.Sprintf("{%v InitWFn: %v}", i.Type, i.Config)
}

// Config implements a weight initializer configuration and can be used
// to create the described Gorgonia InitWFn's.
type Config interface {
	// Create returns the Gorgonia InitWFn that the Config describes,
	// drawing random numbers from src
	Create(src rand.Source) G.InitWFn

	// Type returns the type of Gorgonia InitWFn that is returned
	Type() Type
}

// fill returns a backing slice of dtype dt for a tensor of shape s,
// with each element drawn from sample
func fill(dt tensor.Dtype, s []int, sample func() float64) interface{} {
	size := tensor.Shape(s).TotalSize()

	switch dt {
	case tensor.Float64:
		out := make([]float64, size)
		for i := range out {
			out[i] = sample()
		}
		return out

	case tensor.Float32:
		out := make([]float32, size)
		for i := range out {
			out[i] = float32(sample())
		}
		return out
	}
	panic(fmt.Sprintf("initwfn: unsupported dtype %v", dt))
}

// fans returns the fan in and fan out of a weight tensor of shape s
func fans(s []int) (fanIn, fanOut float64) {
	switch len(s) {
	case 0:
		return 1, 1
	case 1:
		return float64(s[0]), float64(s[0])
	}
	receptive := 1
	for _, d := range s[2:] {
		receptive *= d
	}
	return float64(s[0] * receptive), float64(s[1] * receptive)
}
