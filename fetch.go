package quant

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang/glog"
)

const kDefaultFetchTimeout = 30 * time.Second

// CurveFetcher downloads whitespace delimited curves over HTTP.
type CurveFetcher struct {
	session *http.Client
	headers map[string]string
}

func NewCurveFetcher() *CurveFetcher {
	return &CurveFetcher{
		session: &http.Client{Timeout: kDefaultFetchTimeout},
		headers: map[string]string{
			"user-agent":      "quant-curve-fetcher/1.0",
			"accept":          "text/plain",
			"accept-encoding": "gzip",
		},
	}
}

// SetHeader adds or replaces a request header.
func (self *CurveFetcher) SetHeader(key string, value string) {
	self.headers[key] = value
}

func (self *CurveFetcher) newGetRequest(
	ctx context.Context, url string) (*http.Request, error) {

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range self.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// FetchUrl returns the decoded body of url.
func (self *CurveFetcher) FetchUrl(
	ctx context.Context, url string) (*bytes.Buffer, error) {

	req, err := self.newGetRequest(ctx, url)
	if err != nil {
		glog.Errorf("Building request for URL=%s failed with error=%s", url, err)
		return nil, err
	}

	glog.Info("Fetching URL ", url)
	resp, err := self.session.Do(req)
	if err != nil {
		glog.Errorf("Fetching URL=%s failed with error=%s", url, err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("Fetching URL=%s failed with status=%d.",
			url, resp.StatusCode)
		glog.Error(msg)
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	respBuf, err := readBody(resp)
	if err != nil {
		glog.Errorf("Reading the HTTP response failed with error=%s", err)
		return nil, err
	}

	glog.Infof("Successfully fetched URL=%s.", url)
	return respBuf, nil
}

// readBody returns the response body, decoded according to its
// Content-Encoding. Only identity and gzip are understood.
func readBody(resp *http.Response) (*bytes.Buffer, error) {
	var body io.Reader = resp.Body
	switch encoding := resp.Header.Get("Content-Encoding"); encoding {
	case "", "identity":
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		defer zr.Close()
		body = zr
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(body); err != nil {
		return nil, err
	}
	return buf, nil
}

// FetchCurve downloads url and parses it with ParseReader.
func (self *CurveFetcher) FetchCurve(
	ctx context.Context, url string, layout Layout) (NumericTable, error) {

	buf, err := self.FetchUrl(ctx, url)
	if err != nil {
		return NumericTable{}, err
	}
	return ParseReader(buf, layout)
}
