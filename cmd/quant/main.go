package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"

	"github.com/joshi-prasad/quant"
	"github.com/joshi-prasad/quant/config"
	"github.com/joshi-prasad/quant/server"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [glog flags] <command> [flags]\n\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  bootstrap  derive a spot curve from a swap rate file or URL")
	fmt.Fprintln(os.Stderr, "  price      price a European option and print its greeks")
	fmt.Fprintln(os.Stderr, "  serve      run the HTTP API")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	defer glog.Flush()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	var err error
	args := flag.Args()[1:]
	switch flag.Arg(0) {
	case "bootstrap":
		err = runBootstrap(args)
	case "price":
		err = runPrice(args)
	case "serve":
		err = runServe(args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		glog.Errorf("%s failed with error=%s", flag.Arg(0), err)
		glog.Flush()
		os.Exit(1)
	}
}

func runBootstrap(args []string) error {
	fs := flag.NewFlagSet("bootstrap", flag.ExitOnError)
	layoutName := fs.String("layout", config.DefaultLayout, "table layout: rows or columns")
	url := fs.String("url", "", "fetch the swap curve from this URL instead of a file")
	pngPath := fs.String("png", "", "also save a plot of the curves to this file")
	htmlPath := fs.String("html", "", "also save an HTML chart of the spot curve to this file")
	fs.Parse(args)

	layout, err := quant.ParseLayout(*layoutName)
	if err != nil {
		return err
	}

	var swap quant.NumericTable
	switch {
	case *url != "":
		swap, err = quant.NewCurveFetcher().FetchCurve(context.Background(), *url, layout)
	case fs.NArg() == 1:
		swap, err = quant.ReadTableFile(fs.Arg(0), layout)
	default:
		return errors.New("bootstrap needs exactly one file or -url")
	}
	if err != nil {
		return err
	}

	spot, err := quant.Bootstrap(swap)
	if err != nil {
		return err
	}
	if err := quant.PrintCurves(os.Stdout, swap, spot); err != nil {
		return err
	}

	if *pngPath != "" {
		if err := quant.SaveSpotCurvePlot(*pngPath, swap, spot); err != nil {
			return fmt.Errorf("save plot: %w", err)
		}
		glog.Infof("Saved plot to %s", *pngPath)
	}
	if *htmlPath != "" {
		if err := writeChart(*htmlPath, spot); err != nil {
			return fmt.Errorf("save chart: %w", err)
		}
		glog.Infof("Saved chart to %s", *htmlPath)
	}
	return nil
}

func writeChart(path string, spot quant.NumericTable) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return quant.RenderSpotCurves(file, quant.ChartOptions{
		Width:  config.DefaultChartWidth,
		Height: config.DefaultChartHeight,
	}, quant.Series{Name: "spot", Table: spot})
}

func runPrice(args []string) error {
	fs := flag.NewFlagSet("price", flag.ExitOnError)
	k := fs.Float64("k", 1, "strike price")
	s := fs.Float64("s", 1, "underlying price")
	r := fs.Float64("r", 0.05, "risk free rate")
	sigma := fs.Float64("sigma", 0.20, "volatility")
	t := fs.Float64("t", 1, "time to maturity in years")
	q := fs.Float64("q", 0.05, "dividend yield")
	sideName := fs.String("side", "call", "call or put")
	fs.Parse(args)

	side, err := quant.ParseSide(*sideName)
	if err != nil {
		return err
	}
	contract := quant.OptionContract{
		Strike:        *k,
		Spot:          *s,
		Rate:          *r,
		Volatility:    *sigma,
		Time:          *t,
		DividendYield: *q,
		Side:          side,
	}
	price, err := quant.Price(contract)
	if err != nil {
		return err
	}
	greeks, err := quant.ComputeGreeks(contract)
	if err != nil {
		return err
	}
	quant.PrintQuote(os.Stdout, contract, price, greeks)
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML config file")
	fs.Parse(args)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(cfg).ListenAndServe(ctx)
}
