package env

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"
)

// seedMix decorrelates the second PCG stream word from the seed.
const seedMix = 0x9e3779b97f4a7c15

// sampler draws initial conditions from an instance-local stream so that
// two environments with the same seed produce the same episodes.
type sampler struct {
	src     *rand.PCG
	normal  distuv.Normal
	uniform distuv.Uniform
}

func newSampler(seed uint64) *sampler {
	src := rand.NewPCG(seed, seed^seedMix)
	return &sampler{
		src:     src,
		normal:  distuv.Normal{Mu: 0, Sigma: 1, Src: src},
		uniform: distuv.Uniform{Min: -1, Max: 1, Src: src},
	}
}

func (s *sampler) seed(seed uint64) {
	s.src.Seed(seed, seed^seedMix)
}

// orientation is uniform on the unit 3-sphere with a non-negative scalar.
func (s *sampler) orientation() quat.Number {
	v := make([]float64, 4)
	for {
		for i := range v {
			v[i] = s.normal.Rand()
		}
		if n := floats.Norm(v, 2); n > 1e-9 {
			floats.Scale(1/n, v)
			break
		}
	}
	return quat.Number{Real: math.Abs(v[0]), Imag: v[1], Jmag: v[2], Kmag: v[3]}
}

// cube draws each component uniformly from [-1, 1].
func (s *sampler) cube() r3.Vec {
	return r3.Vec{X: s.uniform.Rand(), Y: s.uniform.Rand(), Z: s.uniform.Rand()}
}

// ball draws uniformly from the closed unit ball by rejection.
func (s *sampler) ball() r3.Vec {
	for {
		v := s.cube()
		if r3.Norm2(v) <= 1 {
			return v
		}
	}
}
