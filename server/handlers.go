package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/shopspring/decimal"

	"github.com/joshi-prasad/quant"
)

const kMaxCurvePoints = 10000

// contractRequest is the JSON form of an option contract.
type contractRequest struct {
	Strike        float64 `json:"strike"`
	Spot          float64 `json:"spot"`
	Rate          float64 `json:"rate"`
	Volatility    float64 `json:"volatility"`
	Time          float64 `json:"time"`
	DividendYield float64 `json:"dividend_yield"`
	Side          string  `json:"side"`
}

func (r contractRequest) contract() (quant.OptionContract, error) {
	side, err := quant.ParseSide(r.Side)
	if err != nil {
		return quant.OptionContract{}, err
	}
	return quant.OptionContract{
		Strike:        r.Strike,
		Spot:          r.Spot,
		Rate:          r.Rate,
		Volatility:    r.Volatility,
		Time:          r.Time,
		DividendYield: r.DividendYield,
		Side:          side,
	}, nil
}

type priceCurveRequest struct {
	contractRequest
	SpotMin float64 `json:"spot_min"`
	SpotMax float64 `json:"spot_max"`
	Points  int     `json:"points"`
}

type impliedVolRequest struct {
	contractRequest
	MarketPrice float64 `json:"market_price"`
}

type greeksResponse struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
	Rho   float64 `json:"rho"`
}

type priceResponse struct {
	RequestID string         `json:"request_id"`
	Side      string         `json:"side"`
	Price     float64        `json:"price"`
	Greeks    greeksResponse `json:"greeks"`
}

type priceCurveResponse struct {
	RequestID string             `json:"request_id"`
	Side      string             `json:"side"`
	Curve     quant.NumericTable `json:"curve"`
}

type impliedVolResponse struct {
	RequestID  string  `json:"request_id"`
	Volatility float64 `json:"volatility"`
}

type curveResponse struct {
	Name     string             `json:"name"`
	Swap     quant.NumericTable `json:"swap"`
	Spot     quant.NumericTable `json:"spot"`
	Discount quant.NumericTable `json:"discount"`
}

type bootstrapResponse struct {
	RequestID string          `json:"request_id"`
	Curves    []curveResponse `json:"curves"`
}

type errorResponse struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

// namedCurve is a parsed swap curve and the name of its source.
type namedCurve struct {
	name  string
	table quant.NumericTable
}

func (s *Server) round(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return decimal.NewFromFloat(x).Round(s.cfg.Pricing.Digits()).InexactFloat64()
}

func (s *Server) roundTable(table quant.NumericTable) quant.NumericTable {
	return table.MapY(func(_, y float64) float64 { return s.round(y) })
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Errorf("Encoding response failed with error=%s", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	glog.Errorf("request_id=%s %s %s failed with status=%d error=%s",
		requestID(r), r.Method, r.URL.Path, status, err)
	writeJSON(w, status, errorResponse{RequestID: requestID(r), Error: err.Error()})
}

// statusFor maps core errors to HTTP status codes.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, quant.ErrDomain), errors.Is(err, quant.ErrNoConvergence):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	var req contractRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	contract, err := req.contract()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	price, err := quant.Price(contract)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	greeks, err := quant.ComputeGreeks(contract)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, priceResponse{
		RequestID: requestID(r),
		Side:      contract.Side.String(),
		Price:     s.round(price),
		Greeks: greeksResponse{
			Delta: s.round(greeks.Delta),
			Gamma: s.round(greeks.Gamma),
			Vega:  s.round(greeks.Vega),
			Theta: s.round(greeks.Theta),
			Rho:   s.round(greeks.Rho),
		},
	})
}

// spotGrid applies configured defaults to a requested underlying price range.
func (s *Server) spotGrid(lo, hi float64, points int) ([]float64, error) {
	if lo == 0 && hi == 0 {
		lo = s.cfg.Pricing.SpotMin
		hi = s.cfg.Pricing.SpotMax
	}
	if points == 0 {
		points = s.cfg.Pricing.CurvePoints
	}
	if !(lo > 0) || !(hi > lo) {
		return nil, fmt.Errorf("%w: spot range must satisfy 0 < spot_min < spot_max, got [%g, %g]",
			quant.ErrInvalidInput, lo, hi)
	}
	if points < 2 || points > kMaxCurvePoints {
		return nil, fmt.Errorf("%w: points must be between 2 and %d, got %d",
			quant.ErrInvalidInput, kMaxCurvePoints, points)
	}
	return quant.SpotGrid(lo, hi, points), nil
}

func (s *Server) handlePriceCurve(w http.ResponseWriter, r *http.Request) {
	var req priceCurveRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	spots, err := s.spotGrid(req.SpotMin, req.SpotMax, req.Points)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	// Spot is replaced by every grid point; any positive value passes validation.
	req.Spot = spots[0]
	contract, err := req.contract()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	curve, err := quant.PriceCurve(contract, spots)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, priceCurveResponse{
		RequestID: requestID(r),
		Side:      contract.Side.String(),
		Curve:     s.roundTable(curve),
	})
}

func (s *Server) handleImpliedVol(w http.ResponseWriter, r *http.Request) {
	var req impliedVolRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	contract, err := req.contract()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	vol, err := quant.ImpliedVolatility(contract, req.MarketPrice)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, impliedVolResponse{
		RequestID:  requestID(r),
		Volatility: s.round(vol),
	})
}

// layout returns the layout named by the "layout" query parameter, or the
// configured default.
func (s *Server) layout(r *http.Request) (quant.Layout, error) {
	if name := r.URL.Query().Get("layout"); name != "" {
		return quant.ParseLayout(name)
	}
	return s.cfg.Layout(), nil
}

// readCurves parses the swap curves of a bootstrap request. A multipart body
// yields one curve per "file" part. A JSON body is one table in the request
// layout; any other body is a single curve of text lines.
func (s *Server) readCurves(
	w http.ResponseWriter, r *http.Request, layout quant.Layout) ([]namedCurve, error) {

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(s.cfg.Server.MaxUploadBytes); err != nil {
			return nil, fmt.Errorf("parse upload: %w", err)
		}
		defer r.MultipartForm.RemoveAll()

		files := r.MultipartForm.File["file"]
		if len(files) == 0 {
			return nil, errors.New("upload has no \"file\" part")
		}
		curves := make([]namedCurve, 0, len(files))
		for _, header := range files {
			table, err := parseUpload(header, layout)
			if err != nil {
				return nil, err
			}
			curves = append(curves, namedCurve{name: header.Filename, table: table})
		}
		return curves, nil
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("read curve: %w", err)
		}
		table, err := quant.DecodeTable(data, layout)
		if err != nil {
			return nil, fmt.Errorf("decode curve: %w", err)
		}
		return []namedCurve{{name: "body", table: table}}, nil
	}

	table, err := quant.ParseReader(r.Body, layout)
	if err != nil {
		return nil, fmt.Errorf("read curve: %w", err)
	}
	return []namedCurve{{name: "body", table: table}}, nil
}

func parseUpload(header *multipart.FileHeader, layout quant.Layout) (quant.NumericTable, error) {
	file, err := header.Open()
	if err != nil {
		return quant.NumericTable{}, fmt.Errorf("open upload %s: %w", header.Filename, err)
	}
	defer file.Close()

	table, err := quant.ParseReader(file, layout)
	if err != nil {
		return quant.NumericTable{}, fmt.Errorf("read upload %s: %w", header.Filename, err)
	}
	return table, nil
}

// bootstrapRequest parses and bootstraps every curve of the request.
func (s *Server) bootstrapRequest(
	w http.ResponseWriter, r *http.Request) ([]namedCurve, []quant.NumericTable, error) {

	layout, err := s.layout(r)
	if err != nil {
		return nil, nil, err
	}
	curves, err := s.readCurves(w, r, layout)
	if err != nil {
		return nil, nil, err
	}
	spots := make([]quant.NumericTable, len(curves))
	for ii, curve := range curves {
		spot, err := quant.BootstrapWithTolerance(curve.table, s.cfg.Bootstrap.TenorTolerance)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap %s: %w", curve.name, err)
		}
		glog.V(1).Infof("request_id=%s bootstrapped %s with %d tenors",
			requestID(r), curve.name, spot.Len())
		spots[ii] = spot
	}
	return curves, spots, nil
}

func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	curves, spots, err := s.bootstrapRequest(w, r)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}

	resp := bootstrapResponse{
		RequestID: requestID(r),
		Curves:    make([]curveResponse, len(curves)),
	}
	for ii, curve := range curves {
		resp.Curves[ii] = curveResponse{
			Name:     curve.name,
			Swap:     curve.table,
			Spot:     s.roundTable(spots[ii]),
			Discount: s.roundTable(quant.DiscountFactors(spots[ii])),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) chartOptions(title string) quant.ChartOptions {
	if s.cfg.Chart.Title != "" {
		title = s.cfg.Chart.Title
	}
	return quant.ChartOptions{
		Title:  title,
		Width:  s.cfg.Chart.Width,
		Height: s.cfg.Chart.Height,
	}
}

// writeBuffered sends buf only after rendering succeeded, so failures can
// still be reported as JSON errors.
func writeBuffered(w http.ResponseWriter, contentType string, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, buf); err != nil {
		glog.Errorf("Writing response failed with error=%s", err)
	}
}

// spotSeries names every bootstrapped curve after its source.
func spotSeries(curves []namedCurve, spots []quant.NumericTable) []quant.Series {
	series := make([]quant.Series, len(curves))
	for ii, curve := range curves {
		series[ii] = quant.Series{Name: curve.name, Table: spots[ii]}
	}
	return series
}

// renderStatus is 400 for charts the request itself makes impossible and 500
// otherwise.
func renderStatus(err error) int {
	if errors.Is(err, quant.ErrSeriesGrid) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) handleBootstrapChart(w http.ResponseWriter, r *http.Request) {
	curves, spots, err := s.bootstrapRequest(w, r)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	buf := new(bytes.Buffer)
	err = quant.RenderSpotCurves(buf, s.chartOptions("Spot Curve"), spotSeries(curves, spots)...)
	if err != nil {
		writeError(w, r, renderStatus(err), err)
		return
	}
	writeBuffered(w, "text/html; charset=utf-8", buf)
}

// handleBootstrapPlot draws the swap and spot curves of a single upload, or
// one spot curve per file of a multi-file upload.
func (s *Server) handleBootstrapPlot(w http.ResponseWriter, r *http.Request) {
	curves, spots, err := s.bootstrapRequest(w, r)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	buf := new(bytes.Buffer)
	if len(curves) == 1 {
		err = quant.WriteSpotCurvePlot(buf, curves[0].table, spots[0], "png")
	} else {
		err = quant.WriteCurvePlot(buf, "Spot Curves", "png", spotSeries(curves, spots)...)
	}
	if err != nil {
		writeError(w, r, renderStatus(err), err)
		return
	}
	writeBuffered(w, "image/png", buf)
}

func queryFloat(r *http.Request, name string, fallback float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: query parameter %s=%q is not a number",
			quant.ErrInvalidInput, name, raw)
	}
	return value, nil
}

// handlePriceChart draws call and put prices against the underlying. Every
// parameter change is a new request, so the chart never shows prices that
// did not come from quant.Price.
func (s *Server) handlePriceChart(w http.ResponseWriter, r *http.Request) {
	params := map[string]float64{
		"strike":         1,
		"rate":           0.05,
		"volatility":     0.20,
		"time":           1,
		"dividend_yield": 0,
		"spot_min":       0,
		"spot_max":       0,
		"points":         0,
	}
	for name, fallback := range params {
		value, err := queryFloat(r, name, fallback)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}
		params[name] = value
	}

	spots, err := s.spotGrid(params["spot_min"], params["spot_max"], int(params["points"]))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	sides := []quant.Side{quant.Call, quant.Put}
	if name := r.URL.Query().Get("side"); name != "" {
		side, err := quant.ParseSide(name)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}
		sides = []quant.Side{side}
	}

	series := make([]quant.Series, 0, len(sides))
	for _, side := range sides {
		curve, err := quant.PriceCurve(quant.OptionContract{
			Strike:        params["strike"],
			Rate:          params["rate"],
			Volatility:    params["volatility"],
			Time:          params["time"],
			DividendYield: params["dividend_yield"],
			Side:          side,
		}, spots)
		if err != nil {
			writeError(w, r, statusFor(err), err)
			return
		}
		series = append(series, quant.Series{Name: side.String(), Table: curve})
	}

	buf := new(bytes.Buffer)
	if err := quant.RenderPriceCurves(buf, s.chartOptions("Black-Scholes Price"), series...); err != nil {
		writeError(w, r, renderStatus(err), err)
		return
	}
	writeBuffered(w, "text/html; charset=utf-8", buf)
}
