package initwfn

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// FanInConfig implements a configuration of a weight initializer that
// draws weights uniformly from ±1/sqrt(fan in)
type FanInConfig struct{}

// NewFanIn returns a new fan in scaled uniform weight initializer
func NewFanIn() (*InitWFn, error) {
	return newInitWFn(FanInConfig{})
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (f FanInConfig) Type() Type {
	return FanIn
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (f FanInConfig) Create(src rand.Source) G.InitWFn {
	return func(dt tensor.Dtype, s ...int) interface{} {
		fanIn, _ := fans(s)
		limit := 1 / math.Sqrt(fanIn)
		dist := distuv.Uniform{Min: -limit, Max: limit, Src: src}
		return fill(dt, s, dist.Rand)
	}
}
