// Package mtm computes mark-to-market valuation and Black-Scholes Greeks
// for the paper broker's positions (spec §4.3).
package mtm

import "math"

// erf approximates the Gauss error function using the Abramowitz-Stegun
// rational approximation (formula 7.1.26), matching the original engine's
// constants bit-for-bit.
func erf(x float64) float64 {
	const (
		a1 = 0.254829592
		a2 = -0.284496736
		a3 = 1.421413741
		a4 = -1.453152027
		a5 = 1.061405429
		p  = 0.3275911
	)

	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	x = math.Abs(x)

	t := 1.0 / (1.0 + p*x)
	y := 1.0 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)

	return sign * y
}

func normalCDF(x float64) float64 {
	return 0.5 * (1.0 + erf(x/math.Sqrt2))
}

func normalPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

// Greeks is the set of option sensitivities produced by the Black-Scholes
// formula. Theta is per-day and Vega is per-percentage-point, matching the
// original engine's scaling.
type Greeks struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Rho   float64
}

// BlackScholesGreeks computes option Greeks for spot s, strike k, time to
// expiry t (years), risk-free rate r, and volatility v. isCall selects the
// call or put formula. Returns the zero value if t <= 0 (expired/at expiry).
func BlackScholesGreeks(s, k, t, r, v float64, isCall bool) Greeks {
	if t <= 0 {
		return Greeks{}
	}

	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s) - math.Log(k) + (r+0.5*v*v)*t) / (v * sqrtT)
	d2 := d1 - v*sqrtT

	nD1 := normalCDF(d1)
	nD2 := normalCDF(d2)
	nPrimeD1 := normalPDF(d1)

	var delta, rho, theta float64
	if isCall {
		delta = nD1
		rho = k * t * math.Exp(-r*t) * nD2
		theta = -(s*nPrimeD1*v)/(2*sqrtT) - r*k*math.Exp(-r*t)*nD2
	} else {
		delta = nD1 - 1.0
		rho = -k * t * math.Exp(-r*t) * (1.0 - nD2)
		theta = -(s*nPrimeD1*v)/(2*sqrtT) - r*k*math.Exp(-r*t)*(1.0-nD2)
	}

	gamma := nPrimeD1 / (s * v * sqrtT)
	vega := s * nPrimeD1 * sqrtT

	return Greeks{
		Delta: delta,
		Gamma: gamma,
		Theta: theta / 365.0,
		Vega:  vega / 100.0,
		Rho:   rho,
	}
}
