package mpulse

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/jaxspot/billing/internal/application/subscription/providergateway"
	"github.com/jaxspot/billing/internal/shared/config"
)

const (
	connectTimeout = 10 * time.Second
	// Maximum SOAP response body read (1MB)
	maxResponseSize = 1 << 20
)

// soapClient posts envelopes to the gateway endpoint. Non-2xx answers are
// still read, since the gateway reports faults with HTTP 500.
type soapClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	endpoint   string
	host       string
	username   string
	password   string
}

func newSOAPClient(cfg config.MPulseConfig) *soapClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &soapClient{
		httpClient: &http.Client{Transport: transport, Timeout: cfg.Timeout()},
		limiter:    rate.NewLimiter(limit, burst),
		endpoint:   cfg.GatewayURL,
		host:       cfg.Host,
		username:   cfg.Username,
		password:   cfg.Password,
	}
}

func (c *soapClient) call(ctx context.Context, payload any) (*responseBody, error) {
	envelope, err := encodeEnvelope(payload)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", providergateway.ErrProviderUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(envelope))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("SOAPAction", `""`)
	req.Header.Set("Content-Type", "text/xml;charset=UTF-8")
	if c.host != "" {
		req.Host = c.host
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", providergateway.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", providergateway.ErrProviderUnavailable, err)
	}

	body, err := decodeEnvelope(data)
	if err != nil {
		return nil, &responseError{status: resp.StatusCode, data: data, err: err}
	}
	return body, nil
}

// responseError keeps the raw payload of an undecodable answer for logging.
type responseError struct {
	status int
	data   []byte
	err    error
}

func (e *responseError) Error() string {
	return fmt.Sprintf("%s: http %d: %v", providergateway.ErrProviderUnavailable, e.status, e.err)
}

func (e *responseError) Unwrap() error {
	return providergateway.ErrProviderUnavailable
}
