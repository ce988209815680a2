package server

import (
	"bytes"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/joshi-prasad/quant"
	"github.com/joshi-prasad/quant/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Server.MaxUploadBytes = 4096
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	return New(cfg)
}

func do(t *testing.T, s *Server, method, target, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHealthAndRequestID(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if _, err := uuid.Parse(rec.Header().Get(kRequestIDHeader)); err != nil {
		t.Errorf("X-Request-ID %q is not a uuid", rec.Header().Get(kRequestIDHeader))
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t)
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	req.Header.Set(kRequestIDHeader, id)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(kRequestIDHeader); got != id {
		t.Errorf("X-Request-ID = %q, want %q", got, id)
	}
}

func TestPrice(t *testing.T) {
	s := newTestServer(t)
	body := []byte(`{"strike":100,"spot":100,"rate":0.05,"volatility":0.2,"time":1,"dividend_yield":0,"side":"call"}`)
	rec := do(t, s, http.MethodPost, "/api/price", "application/json", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp priceResponse
	decode(t, rec, &resp)
	if math.Abs(resp.Price-10.4506) > 1e-3 {
		t.Errorf("price = %v, want about 10.4506", resp.Price)
	}
	if resp.Side != "call" {
		t.Errorf("side = %q, want call", resp.Side)
	}
	if resp.Greeks.Delta <= 0 || resp.Greeks.Delta >= 1 {
		t.Errorf("delta = %v, want in (0, 1)", resp.Greeks.Delta)
	}
	if resp.RequestID == "" {
		t.Error("request_id is empty")
	}
}

func TestPriceRejectsInvalidInput(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"zero volatility", `{"strike":100,"spot":100,"rate":0.05,"volatility":0,"time":1,"side":"call"}`},
		{"negative time", `{"strike":100,"spot":100,"rate":0.05,"volatility":0.2,"time":-1,"side":"put"}`},
		{"unknown side", `{"strike":100,"spot":100,"rate":0.05,"volatility":0.2,"time":1,"side":"straddle"}`},
		{"unknown field", `{"strike":100,"spot":100,"vol":0.2,"time":1,"side":"call"}`},
		{"malformed json", `{"strike":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/price", "application/json", []byte(tt.body))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400, body %s", rec.Code, rec.Body.String())
			}
			var resp errorResponse
			decode(t, rec, &resp)
			if resp.Error == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestPriceCurve(t *testing.T) {
	s := newTestServer(t)
	body := []byte(`{"strike":1,"rate":0.05,"volatility":0.2,"time":1,"side":"put","spot_min":0.5,"spot_max":1.5,"points":11}`)
	rec := do(t, s, http.MethodPost, "/api/price/curve", "application/json", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Side  string       `json:"side"`
		Curve [][2]float64 `json:"curve"`
	}
	decode(t, rec, &resp)
	if len(resp.Curve) != 11 {
		t.Fatalf("curve has %d points, want 11", len(resp.Curve))
	}
	if resp.Curve[0][0] != 0.5 || resp.Curve[10][0] != 1.5 {
		t.Errorf("grid = [%v .. %v], want [0.5 .. 1.5]", resp.Curve[0][0], resp.Curve[10][0])
	}
	// put prices fall as the underlying rises
	for ii := 1; ii < len(resp.Curve); ii++ {
		if resp.Curve[ii][1] > resp.Curve[ii-1][1] {
			t.Fatalf("put price rose from %v to %v", resp.Curve[ii-1][1], resp.Curve[ii][1])
		}
	}
}

func TestPriceCurveDefaultsGrid(t *testing.T) {
	s := newTestServer(t)
	body := []byte(`{"strike":1,"rate":0.05,"volatility":0.2,"time":1,"side":"call"}`)
	rec := do(t, s, http.MethodPost, "/api/price/curve", "application/json", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Curve [][2]float64 `json:"curve"`
	}
	decode(t, rec, &resp)
	if len(resp.Curve) != config.DefaultCurvePoints {
		t.Errorf("curve has %d points, want %d", len(resp.Curve), config.DefaultCurvePoints)
	}
}

func TestImpliedVol(t *testing.T) {
	s := newTestServer(t)
	price, err := quant.BlsPrice(100, 95, 0.03, 0.35, 0.5, 0.01, quant.Put)
	if err != nil {
		t.Fatalf("BlsPrice: %v", err)
	}
	body, _ := json.Marshal(map[string]interface{}{
		"strike": 100, "spot": 95, "rate": 0.03, "time": 0.5,
		"dividend_yield": 0.01, "side": "put", "market_price": price,
	})
	rec := do(t, s, http.MethodPost, "/api/implied-vol", "application/json", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp impliedVolResponse
	decode(t, rec, &resp)
	if math.Abs(resp.Volatility-0.35) > 1e-5 {
		t.Errorf("volatility = %v, want 0.35", resp.Volatility)
	}
}

const flatSwapCurve = "1 0.05\n2 0.05\n3 0.05\n4 0.05\n"

func TestBootstrapPlainText(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/bootstrap?layout=rows", "text/plain", []byte(flatSwapCurve))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Curves []struct {
			Name string       `json:"name"`
			Spot [][2]float64 `json:"spot"`
		} `json:"curves"`
	}
	decode(t, rec, &resp)
	if len(resp.Curves) != 1 || len(resp.Curves[0].Spot) != 4 {
		t.Fatalf("unexpected response %s", rec.Body.String())
	}
	if resp.Curves[0].Spot[0] != [2]float64{1, 0.05} {
		t.Errorf("first spot point = %v, want [1 0.05]", resp.Curves[0].Spot[0])
	}
}

func TestBootstrapColumnsLayoutByDefault(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/bootstrap", "text/plain", []byte(flatSwapCurve))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Curves []struct {
			Spot [][]float64 `json:"spot"`
		} `json:"curves"`
	}
	decode(t, rec, &resp)
	spot := resp.Curves[0].Spot
	if len(spot) != 2 || len(spot[0]) != 4 {
		t.Fatalf("spot = %v, want two columns of 4", spot)
	}
	if spot[0][3] != 4 {
		t.Errorf("last tenor = %v, want 4", spot[0][3])
	}
}

// multipartCurves builds an upload with one "file" part per curve.
func multipartCurves(t *testing.T, files map[string]string, order ...string) (string, []byte) {
	t.Helper()
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	for _, name := range order {
		part, err := mw.CreateFormFile("file", name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		part.Write([]byte(files[name]))
	}
	mw.Close()
	return mw.FormDataContentType(), body.Bytes()
}

func TestBootstrapMultipartUpload(t *testing.T) {
	s := newTestServer(t)
	contentType, body := multipartCurves(t, map[string]string{
		"a.txt": flatSwapCurve,
		"b.txt": flatSwapCurve,
	}, "a.txt", "b.txt")

	rec := do(t, s, http.MethodPost, "/api/bootstrap", contentType, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Curves []struct {
			Name string `json:"name"`
		} `json:"curves"`
	}
	decode(t, rec, &resp)
	if len(resp.Curves) != 2 {
		t.Fatalf("got %d curves, want 2", len(resp.Curves))
	}
	if resp.Curves[0].Name != "a.txt" || resp.Curves[1].Name != "b.txt" {
		t.Errorf("names = %q, %q", resp.Curves[0].Name, resp.Curves[1].Name)
	}
}

func TestBootstrapJSONBody(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/bootstrap?layout=columns", "application/json",
		[]byte("[[1,2],[0.05,0.05]]"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Curves []struct {
			Spot [][]float64 `json:"spot"`
		} `json:"curves"`
	}
	decode(t, rec, &resp)
	spot := resp.Curves[0].Spot
	if len(spot) != 2 || len(spot[0]) != 2 {
		t.Fatalf("spot = %v, want two columns of 2", spot)
	}
	if spot[0][0] != 1 || spot[0][1] != 2 || spot[1][0] != 0.05 {
		t.Errorf("spot = %v, want tenors [1 2] and first rate 0.05", spot)
	}

	rec = do(t, s, http.MethodPost, "/api/bootstrap?layout=rows", "application/json",
		[]byte("[[1,0.05,7],[2,0.05,7]]"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for three value rows", rec.Code)
	}
}

func TestBootstrapErrors(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name   string
		target string
		body   string
		status int
	}{
		{"domain error", "/api/bootstrap", "1 0.05\n2 2.0\n", http.StatusUnprocessableEntity},
		{"single point", "/api/bootstrap", "1 0.05\n", http.StatusBadRequest},
		{"empty body", "/api/bootstrap", "", http.StatusBadRequest},
		{"uneven tenors", "/api/bootstrap", "1 0.05\n2 0.05\n4 0.05\n", http.StatusBadRequest},
		{"unknown layout", "/api/bootstrap?layout=diagonal", flatSwapCurve, http.StatusBadRequest},
		{"too large", "/api/bootstrap", strings.Repeat("1 0.05\n", 1000), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.target, "text/plain", []byte(tt.body))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestBootstrapChart(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/chart/bootstrap", "text/plain", []byte(flatSwapCurve))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "echarts") {
		t.Error("chart page does not load echarts")
	}
}

func TestBootstrapPlot(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/plot/bootstrap", "text/plain", []byte(flatSwapCurve))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("response is not a PNG image")
	}
}

func TestBootstrapChartAndPlotDrawEveryUpload(t *testing.T) {
	s := newTestServer(t)
	files := map[string]string{
		"usd.txt": flatSwapCurve,
		"eur.txt": "1 0.02\n2 0.025\n3 0.03\n4 0.035\n",
	}

	contentType, body := multipartCurves(t, files, "usd.txt", "eur.txt")
	rec := do(t, s, http.MethodPost, "/chart/bootstrap", contentType, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("chart status = %d, body %s", rec.Code, rec.Body.String())
	}
	for _, name := range []string{"usd.txt", "eur.txt"} {
		if !strings.Contains(rec.Body.String(), name) {
			t.Errorf("chart is missing series %q", name)
		}
	}

	contentType, body = multipartCurves(t, files, "usd.txt", "eur.txt")
	rec = do(t, s, http.MethodPost, "/plot/bootstrap", contentType, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("plot status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("response is not a PNG image")
	}
}

func TestBootstrapChartRejectsDifferentGrids(t *testing.T) {
	s := newTestServer(t)
	contentType, body := multipartCurves(t, map[string]string{
		"annual.txt": flatSwapCurve,
		"semi.txt":   "0.5 0.05\n1.0 0.05\n1.5 0.05\n2.0 0.05\n",
	}, "annual.txt", "semi.txt")

	rec := do(t, s, http.MethodPost, "/chart/bootstrap", contentType, body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %s", rec.Code, rec.Body.String())
	}
}

func TestPriceChart(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/chart/price?strike=1&volatility=0.3&points=20", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	page := rec.Body.String()
	if !strings.Contains(page, "call") || !strings.Contains(page, "put") {
		t.Error("chart page is missing the call or put series")
	}

	rec = do(t, s, http.MethodGet, "/chart/price?volatility=abc", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for non-numeric volatility", rec.Code)
	}
	rec = do(t, s, http.MethodGet, "/chart/price?volatility=0", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for zero volatility", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/price"},
		{http.MethodGet, "/api/bootstrap"},
		{http.MethodPost, "/api/healthz"},
		{http.MethodPost, "/chart/price"},
		{http.MethodGet, "/plot/bootstrap"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.path, "", nil)
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("status = %d, want 405", rec.Code)
			}
		})
	}

	rec := do(t, s, http.MethodGet, "/api/missing", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}
}
