package workload

import (
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// ArrivalSampler generates inter-arrival times for a message generator.
type ArrivalSampler interface {
	// SampleIAT returns the next inter-arrival time in seconds. Always > 0.
	SampleIAT(rng *rand.Rand) float64
}

// PeriodicSampler emits messages at a fixed interval.
type PeriodicSampler struct {
	interval float64
}

func (s *PeriodicSampler) SampleIAT(*rand.Rand) float64 { return s.interval }

// PoissonSampler generates exponentially-distributed inter-arrival times (CV=1).
type PoissonSampler struct {
	rate float64 // messages per second
}

func (s *PoissonSampler) SampleIAT(rng *rand.Rand) float64 {
	return math.Max(rng.ExpFloat64()/s.rate, minIAT)
}

// GammaSampler generates Gamma-distributed inter-arrival times.
// CV > 1 produces bursty traffic.
type GammaSampler struct {
	shape float64 // 1/CV²
	scale float64 // CV²/rate, seconds
}

func (s *GammaSampler) SampleIAT(rng *rand.Rand) float64 {
	return math.Max(gammaRand(rng, s.shape, s.scale), minIAT)
}

// minIAT keeps consecutive arrivals strictly ordered in time.
const minIAT = 1e-6

// gammaRand samples from Gamma(shape, scale) using Marsaglia-Tsang's method.
// For shape < 1: Gamma(shape) = Gamma(shape+1) * U^(1/shape).
func gammaRand(rng *rand.Rand, shape, scale float64) float64 {
	if shape < 1.0 {
		u := rng.Float64()
		return gammaRand(rng, shape+1.0, scale) * math.Pow(u, 1.0/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1.0 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()

		// Squeeze test
		if u < 1.0-0.0331*(x*x)*(x*x) {
			return d * v * scale
		}
		if math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

// NewArrivalSampler creates the sampler for a process name.
// periodic uses interval; poisson and gamma use rate (messages/second);
// gamma additionally uses cv (defaults to 1).
func NewArrivalSampler(process string, interval, rate, cv float64) ArrivalSampler {
	switch process {
	case "periodic":
		return &PeriodicSampler{interval: interval}
	case "gamma":
		if cv <= 0 {
			cv = 1.0
		}
		shape := 1.0 / (cv * cv)
		if shape < 0.01 {
			logrus.Warnf("Gamma shape %.4f (CV=%.1f) is very small; falling back to Poisson", shape, cv)
			return &PoissonSampler{rate: rate}
		}
		return &GammaSampler{shape: shape, scale: cv * cv / rate}
	default:
		return &PoissonSampler{rate: rate}
	}
}
