package flow

import (
	"errors"
	"fmt"
)

// Params are the Farneback estimator settings. They are fixed configuration so
// that two runs over the same frames produce identical images.
type Params struct {
	PyrScale   float64 `env:"PYR_SCALE"   envDefault:"0.5" json:"pyr_scale"`
	Levels     int     `env:"LEVELS"      envDefault:"3"   json:"levels"`
	WindowSize int     `env:"WINDOW_SIZE" envDefault:"15"  json:"window_size"`
	Iterations int     `env:"ITERATIONS"  envDefault:"3"   json:"iterations"`
	PolyN      int     `env:"POLY_N"      envDefault:"5"   json:"poly_n"`
	PolySigma  float64 `env:"POLY_SIGMA"  envDefault:"1.2" json:"poly_sigma"`
	Flags      int     `env:"FLAGS"       envDefault:"0"   json:"flags"`
}

func DefaultParams() Params {
	return Params{
		PyrScale:   0.5,
		Levels:     3,
		WindowSize: 15,
		Iterations: 3,
		PolyN:      5,
		PolySigma:  1.2,
		Flags:      0,
	}
}

// FarnebackGaussian selects a gaussian window instead of a box filter
// (OPTFLOW_FARNEBACK_GAUSSIAN). It is the only flag accepted: the flow field
// is never seeded, so OPTFLOW_USE_INITIAL_FLOW cannot apply.
const FarnebackGaussian = 256

var ErrInvalidParams = errors.New("invalid optical flow parameters")

func (p Params) Validate() error {
	switch {
	case p.PyrScale <= 0 || p.PyrScale >= 1:
		return fmt.Errorf("%w: pyramid scale %v must be in (0, 1)", ErrInvalidParams, p.PyrScale)
	case p.Levels < 1:
		return fmt.Errorf("%w: levels %d must be positive", ErrInvalidParams, p.Levels)
	case p.WindowSize < 1:
		return fmt.Errorf("%w: window size %d must be positive", ErrInvalidParams, p.WindowSize)
	case p.Iterations < 1:
		return fmt.Errorf("%w: iterations %d must be positive", ErrInvalidParams, p.Iterations)
	case p.PolyN < 1:
		return fmt.Errorf("%w: polynomial neighborhood %d must be positive", ErrInvalidParams, p.PolyN)
	case p.PolySigma <= 0:
		return fmt.Errorf("%w: polynomial sigma %v must be positive", ErrInvalidParams, p.PolySigma)
	case p.Flags != 0 && p.Flags != FarnebackGaussian:
		return fmt.Errorf("%w: flags %d must be 0 or %d", ErrInvalidParams, p.Flags, FarnebackGaussian)
	}
	return nil
}
