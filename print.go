package quant

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// PrintCurves writes tenor, swap rate, spot rate and discount factor as a
// table. Spot rates above the swap rate are printed green, below red.
func PrintCurves(w io.Writer, swap NumericTable, spot NumericTable) error {
	if swap.Len() != spot.Len() {
		return fmt.Errorf("swap curve has %d points, spot curve %d",
			swap.Len(), spot.Len())
	}
	discount := DiscountFactors(spot)

	headerColor := color.New(color.FgBlue, color.Bold).SprintFunc()
	greenColor := color.New(color.FgGreen).SprintFunc()
	redColor := color.New(color.FgRed).SprintFunc()
	defaultColor := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintln(w, headerColor(fmt.Sprintf("%-10s %-12s %-12s %-12s",
		"Tenor", "SwapRate", "SpotRate", "Discount")))

	for ii := 0; ii < swap.Len(); ii++ {
		spotColor := defaultColor
		if spot.Y(ii) > swap.Y(ii) {
			spotColor = greenColor
		} else if spot.Y(ii) < swap.Y(ii) {
			spotColor = redColor
		}
		fmt.Fprintf(w, "%-10.4f %-12.6f %s %-12.6f\n",
			swap.X(ii), swap.Y(ii),
			spotColor(fmt.Sprintf("%-12.6f", spot.Y(ii))),
			discount.Y(ii))
	}
	return nil
}

// PrintQuote writes the price and greeks of an option contract.
func PrintQuote(w io.Writer, c OptionContract, price float64, greeks Greeks) {
	labelColor := color.New(color.FgBlue).SprintFunc()
	priceColor := color.New(color.FgGreen, color.Bold).SprintFunc()

	fmt.Fprintf(w, "%s %s k=%g s=%g r=%g sigma=%g t=%g q=%g\n",
		labelColor("Contract:"), c.Side, c.Strike, c.Spot, c.Rate,
		c.Volatility, c.Time, c.DividendYield)
	fmt.Fprintf(w, "%s %s\n", labelColor("Price:   "),
		priceColor(fmt.Sprintf("%.6f", price)))
	fmt.Fprintf(w, "%s %-10.6f\n", labelColor("Delta:   "), greeks.Delta)
	fmt.Fprintf(w, "%s %-10.6f\n", labelColor("Gamma:   "), greeks.Gamma)
	fmt.Fprintf(w, "%s %-10.6f\n", labelColor("Vega:    "), greeks.Vega)
	fmt.Fprintf(w, "%s %-10.6f\n", labelColor("Theta:   "), greeks.Theta)
	fmt.Fprintf(w, "%s %-10.6f\n", labelColor("Rho:     "), greeks.Rho)
}
