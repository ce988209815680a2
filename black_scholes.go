package quant

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	kIvLowerBound    = 1e-6
	kIvUpperBound    = 5.0
	kIvTolerance     = 1e-8
	kIvMaxIterations = 200
)

var (
	ErrInvalidInput  = errors.New("invalid option inputs")
	ErrNoConvergence = errors.New("implied volatility did not converge")
)

// Side selects a call or a put.
type Side int

const (
	Call Side = iota
	Put
)

func (s Side) String() string {
	if s == Put {
		return "put"
	}
	return "call"
}

// ParseSide accepts "call" or "put" in any case.
func ParseSide(name string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "call", "c", "ce":
		return Call, nil
	case "put", "p", "pe":
		return Put, nil
	}
	return Call, fmt.Errorf("%w: unknown option side %q", ErrInvalidInput, name)
}

// InvalidInputError names the contract field that failed validation.
type InvalidInputError struct {
	Field string
	Value float64
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid option input: %s must be positive and finite, got %g",
		e.Field, e.Value)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// OptionContract holds the inputs of the Black-Scholes formula. Rate and
// DividendYield are continuously compounded annual rates; Time is in years.
type OptionContract struct {
	Strike        float64
	Spot          float64
	Rate          float64
	Volatility    float64
	Time          float64
	DividendYield float64
	Side          Side
}

// Greeks are the first order sensitivities of the option price, per unit
// change of each input and per year for Theta.
type Greeks struct {
	Delta float64
	Gamma float64
	Vega  float64
	Theta float64
	Rho   float64
}

// Validate checks the contract before any logarithm or division is taken.
// Strike, spot, volatility and time must be positive; the rates only need to
// be finite.
func (self OptionContract) Validate() error {
	positive := []struct {
		name  string
		value float64
	}{
		{"strike", self.Strike},
		{"spot", self.Spot},
		{"volatility", self.Volatility},
		{"time", self.Time},
	}
	for _, field := range positive {
		if !(field.value > 0) || math.IsInf(field.value, 0) {
			return &InvalidInputError{Field: field.name, Value: field.value}
		}
	}
	if math.IsNaN(self.Rate) || math.IsInf(self.Rate, 0) {
		return &InvalidInputError{Field: "rate", Value: self.Rate}
	}
	if math.IsNaN(self.DividendYield) || math.IsInf(self.DividendYield, 0) {
		return &InvalidInputError{Field: "dividend yield", Value: self.DividendYield}
	}
	if self.Side != Call && self.Side != Put {
		return fmt.Errorf("%w: unknown option side %d", ErrInvalidInput, self.Side)
	}
	return nil
}

// stdDev is sigma * sqrt(t), the standard deviation of the log return up to
// expiry.
func (self OptionContract) stdDev() float64 {
	return self.Volatility * math.Sqrt(self.Time)
}

// D1 is the risk adjusted moneyness
// (ln(s/k) + (r - q + sigma^2/2) t) / (sigma sqrt(t)).
func (self OptionContract) D1() float64 {
	return (math.Log(self.Spot/self.Strike) +
		(self.Rate-self.DividendYield+self.Volatility*self.Volatility/2)*self.Time) /
		self.stdDev()
}

// D2 is D1 - sigma sqrt(t).
func (self OptionContract) D2() float64 {
	return self.D1() - self.stdDev()
}

// rateDiscount is e^(-r t), the present value of one unit paid at expiry.
func (self OptionContract) rateDiscount() float64 {
	return math.Exp(-self.Rate * self.Time)
}

// dividendDiscount is e^(-q t), the share of the underlying left after the
// dividend yield is paid out until expiry.
func (self OptionContract) dividendDiscount() float64 {
	return math.Exp(-self.DividendYield * self.Time)
}

// NormCdf is the standard normal cumulative distribution function.
func NormCdf(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// NormPdf is the standard normal density.
func NormPdf(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}

// Price returns the Black-Scholes-Merton price of the contract.
//
//	call = s e^(-qt) N(d1) - k e^(-rt) N(d2)
//	put  = k e^(-rt) N(-d2) - s e^(-qt) N(-d1)
func Price(c OptionContract) (float64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	d1 := c.D1()
	d2 := c.D2()
	spotPv := c.Spot * c.dividendDiscount()
	strikePv := c.Strike * c.rateDiscount()
	if c.Side == Put {
		return strikePv*NormCdf(-d2) - spotPv*NormCdf(-d1), nil
	}
	return spotPv*NormCdf(d1) - strikePv*NormCdf(d2), nil
}

// BlsPrice prices an option from positional arguments: strike k, underlying
// s, rate r, volatility sigma, time t and dividend yield q.
func BlsPrice(k, s, r, sigma, t, q float64, side Side) (float64, error) {
	return Price(OptionContract{
		Strike:        k,
		Spot:          s,
		Rate:          r,
		Volatility:    sigma,
		Time:          t,
		DividendYield: q,
		Side:          side,
	})
}

// ComputeGreeks returns delta, gamma, vega, theta and rho of the contract.
// Gamma and vega are the same for calls and puts.
func ComputeGreeks(c OptionContract) (Greeks, error) {
	if err := c.Validate(); err != nil {
		return Greeks{}, err
	}
	d1 := c.D1()
	d2 := c.D2()
	qDisc := c.dividendDiscount()
	rDisc := c.rateDiscount()
	density := NormPdf(d1)

	greeks := Greeks{
		Gamma: qDisc * density / (c.Spot * c.stdDev()),
		Vega:  c.Spot * qDisc * density * math.Sqrt(c.Time),
	}
	// time decay from the volatility term, common to both sides
	decay := -c.Spot * qDisc * density * c.Volatility / (2 * math.Sqrt(c.Time))

	if c.Side == Put {
		greeks.Delta = -qDisc * NormCdf(-d1)
		greeks.Theta = decay + c.Rate*c.Strike*rDisc*NormCdf(-d2) -
			c.DividendYield*c.Spot*qDisc*NormCdf(-d1)
		greeks.Rho = -c.Strike * c.Time * rDisc * NormCdf(-d2)
	} else {
		greeks.Delta = qDisc * NormCdf(d1)
		greeks.Theta = decay - c.Rate*c.Strike*rDisc*NormCdf(d2) +
			c.DividendYield*c.Spot*qDisc*NormCdf(d1)
		greeks.Rho = c.Strike * c.Time * rDisc * NormCdf(d2)
	}
	return greeks, nil
}

// PutCallParityGap returns C - P - (s e^(-qt) - k e^(-rt)). It is zero when
// the two prices admit no arbitrage.
func PutCallParityGap(callPrice, putPrice float64, c OptionContract) float64 {
	return callPrice - putPrice - (c.Spot*c.dividendDiscount() - c.Strike*c.rateDiscount())
}

// ImpliedVolatility finds the volatility at which the contract is worth
// marketPrice. The Volatility field of c is ignored.
// The price is increasing in volatility, so the search halves the bracket
// [kIvLowerBound, kIvUpperBound] until the price error is below kIvTolerance.
func ImpliedVolatility(c OptionContract, marketPrice float64) (float64, error) {
	c.Volatility = kIvLowerBound
	if err := c.Validate(); err != nil {
		return 0, err
	}
	if !(marketPrice > 0) || math.IsInf(marketPrice, 0) {
		return 0, &InvalidInputError{Field: "market price", Value: marketPrice}
	}

	lowerBound := kIvLowerBound
	upperBound := kIvUpperBound
	for i := 0; i < kIvMaxIterations; i++ {
		c.Volatility = (lowerBound + upperBound) / 2
		price, err := Price(c)
		if err != nil {
			return 0, err
		}
		if math.Abs(price-marketPrice) < kIvTolerance {
			return c.Volatility, nil
		}
		if price < marketPrice {
			lowerBound = c.Volatility
		} else {
			upperBound = c.Volatility
		}
		if upperBound-lowerBound < kIvTolerance*kIvTolerance {
			break
		}
	}
	return 0, fmt.Errorf("%w: market price %g", ErrNoConvergence, marketPrice)
}

// SpotGrid returns n equally spaced underlying prices from lo to hi.
func SpotGrid(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	if n == 1 {
		return []float64{lo}
	}
	grid := floats.Span(make([]float64, n), lo, hi)
	grid[n-1] = hi
	return grid
}

// PriceCurve prices the contract at every underlying price in spots. The
// Spot field of c is ignored.
func PriceCurve(c OptionContract, spots []float64) (NumericTable, error) {
	prices := make([]float64, len(spots))
	for ii, spot := range spots {
		c.Spot = spot
		price, err := Price(c)
		if err != nil {
			return NumericTable{}, err
		}
		prices[ii] = price
	}
	return NewTable(spots, prices, RowLayout)
}

