// Package tabnet queries the DATASUS "Painel Oncológico" tabulation
// CGI, which only speaks an HTML/JS-rendered report format behind a
// session-cookie-gated form POST.
package tabnet

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"sync"
	"time"

	"oncopainel-backend/lib/restyutil"
	"oncopainel-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultBaseUrl = "http://tabnet.datasus.gov.br"
	handshakePath  = "/cgi/dhdat.exe"
	queryPath      = "/cgi/webtabx.exe"
	// the def-file selector the CGI takes as a bare query parameter
	defName = "PAINEL_ONCO/PAINEL_ONCOLOGIABR.def"
)

type Client struct {
	http *resty.Client

	mu         sync.Mutex
	handshaken bool
}

type ClientOptions struct {
	// defaults to the public tabnet host, tests point this at a mock
	// upstream
	BaseUrl string
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseUrl := opts.BaseUrl
	if baseUrl == "" {
		baseUrl = defaultBaseUrl
	}

	client := resty.New()
	client.SetBaseURL(baseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetTimeout(time.Second * 30)

	// the CGI rejects requests that don't look like they came out of
	// the panel's own browser UI
	client.SetHeaders(map[string]string{
		"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
		"Origin":                    baseUrl,
		"Content-Type":              "application/x-www-form-urlencoded",
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Referer":                   baseUrl + handshakePath + "?" + defName,
		"Accept-Language":           "pt-BR,pt;q=0.9",
		"Cache-Control":             "max-age=0",
		"Upgrade-Insecure-Requests": "1",
	})

	telemetry.InstrumentResty(client, "oncopainel.lib.scrapers.tabnet.http")
	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	return &Client{http: client}, nil
}

// Handshake fetches the def-file page so the CGI hands out its
// session cookie, every subsequent POST carries it through the jar.
// It only needs to run once per client, queries trigger it lazily.
func (c *Client) Handshake(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Handshake")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam(defName, "").
		Get(handshakePath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handshake request failed")
		return fmt.Errorf("handshake: %w", err)
	}
	if res.IsError() {
		err := &StatusError{StatusCode: res.StatusCode()}
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("handshake: %w", err)
	}

	c.mu.Lock()
	c.handshaken = true
	c.mu.Unlock()
	return nil
}

func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	done := c.handshaken
	c.mu.Unlock()
	if done {
		return nil
	}
	return c.Handshake(ctx)
}

// one full payload -> POST -> extraction round trip. A nil fragment
// with a nil error means the upstream reported no matching records.
func (c *Client) roundTrip(ctx context.Context, label, payload string) (*Fragment, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam(defName, "").
		SetBody(payload).
		Post(queryPath)
	if err != nil {
		if label != "" {
			return nil, fmt.Errorf("query %q: %w", label, err)
		}
		return nil, err
	}
	if res.IsError() {
		return nil, &StatusError{Label: label, StatusCode: res.StatusCode()}
	}

	page, err := decodeBody(res.Body())
	if err != nil {
		return nil, err
	}
	// absent-data pages don't contain the chart fragment at all, so
	// this check has to come before any parsing
	if isNoData(page) {
		return nil, nil
	}

	raw, _ := extractChartData(page)
	return &Fragment{Raw: raw}, nil
}
