package quant

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

// DefaultTenorTolerance is the absolute and relative tolerance used when
// checking that a swap curve is equally spaced.
const DefaultTenorTolerance = 1e-9

var (
	ErrTooFewPoints = errors.New("swap curve needs at least 2 points")
	ErrInvalidCurve = errors.New("swap curve tenors must be positive and increasing")
	ErrUnevenTenors = errors.New("swap curve tenors are not equally spaced")
	ErrDomain       = errors.New("bootstrap logarithm argument is not positive")
)

// DomainError reports the tenor at which the bootstrap recurrence left the
// domain of the logarithm.
type DomainError struct {
	Index    int
	Tenor    float64
	SwapRate float64
	Argument float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("bootstrap failed at tenor %g (index %d, swap rate %g): "+
		"log argument %g is not positive", e.Tenor, e.Index, e.SwapRate, e.Argument)
}

func (e *DomainError) Unwrap() error {
	return ErrDomain
}

// Bootstrap derives the continuously compounded spot curve implied by an
// equally spaced par swap curve. The result has the input's grid and layout.
func Bootstrap(curve NumericTable) (NumericTable, error) {
	return BootstrapWithTolerance(curve, DefaultTenorTolerance)
}

// BootstrapWithTolerance is Bootstrap with a caller supplied tolerance for the
// tenor spacing check.
func BootstrapWithTolerance(curve NumericTable, tol float64) (NumericTable, error) {
	step, err := checkGrid(curve.xs, tol)
	if err != nil {
		return NumericTable{}, err
	}

	tenors := curve.xs
	swap := curve.ys
	spot := make([]float64, len(swap))
	spot[0] = swap[0]

	// spot[i] depends on every spot[j], j < i.
	for i := 1; i < len(tenors); i++ {
		summation := 0.0
		for j := 0; j < i; j++ {
			summation += swap[i] * step * math.Exp(-spot[j]*tenors[j])
		}
		arg := (1 - summation) / (1 + step*swap[i])
		if !(arg > 0) || math.IsInf(arg, 0) {
			return NumericTable{}, &DomainError{
				Index:    i,
				Tenor:    tenors[i],
				SwapRate: swap[i],
				Argument: arg,
			}
		}
		spot[i] = (-1 / tenors[i]) * math.Log(arg)
	}

	return NumericTable{
		xs:     curve.Xs(),
		ys:     spot,
		layout: curve.layout,
	}, nil
}

// checkGrid returns the tenor step after verifying the curve has at least two
// points, a positive first tenor and a constant positive step.
func checkGrid(tenors []float64, tol float64) (float64, error) {
	if len(tenors) < 2 {
		return 0, ErrTooFewPoints
	}
	step := tenors[1] - tenors[0]
	if !(tenors[0] > 0) || !(step > 0) || math.IsInf(tenors[len(tenors)-1], 0) {
		return 0, ErrInvalidCurve
	}
	for ii := 2; ii < len(tenors); ii++ {
		gap := tenors[ii] - tenors[ii-1]
		if !scalar.EqualWithinAbsOrRel(gap, step, tol, tol) {
			return 0, fmt.Errorf("%w: gap %g at tenor %g, expected %g",
				ErrUnevenTenors, gap, tenors[ii], step)
		}
	}
	return step, nil
}

// BootstrapRows bootstraps a curve given as (tenor, swap rate) pairs.
func BootstrapRows(rows [][2]float64) ([][2]float64, error) {
	spot, err := Bootstrap(FromRows(rows))
	if err != nil {
		return nil, err
	}
	return spot.Rows(), nil
}

// BootstrapColumns bootstraps a curve given as a tenor column and a swap rate
// column.
func BootstrapColumns(cols [2][]float64) ([2][]float64, error) {
	curve, err := FromColumns(cols)
	if err != nil {
		return [2][]float64{}, err
	}
	spot, err := Bootstrap(curve)
	if err != nil {
		return [2][]float64{}, err
	}
	return spot.Columns(), nil
}

// DiscountFactors converts a spot curve to exp(-spot*tenor) on the same grid.
func DiscountFactors(spot NumericTable) NumericTable {
	return spot.MapY(func(tenor, rate float64) float64 {
		return math.Exp(-rate * tenor)
	})
}
