package httpdispatch

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"time"
)

// Executor builds and issues a single wire call. It never implements
// redirection, retry, or caching — those belong to the Work Manager.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// HTTPExecutor is the net/http-backed reference Executor, grounded on
// httpcache.go's Transport.RoundTrip for the "wrap an inner RoundTripper,
// read the full body, decorate headers" shape — minus any caching,
// redirect-following, or retry, which the Manager owns.
type HTTPExecutor struct {
	ConnectTimeout         time.Duration
	ReadTimeout            time.Duration
	DisableTLSVerification bool
	UseNativeRedirects     bool

	client *http.Client
}

// NewHTTPExecutor builds an HTTPExecutor from a Config.
func NewHTTPExecutor(cfg Config) *HTTPExecutor {
	e := &HTTPExecutor{
		ConnectTimeout:         time.Duration(cfg.ConnectTimeoutMs) * time.Millisecond,
		ReadTimeout:            time.Duration(cfg.ReadTimeoutMs) * time.Millisecond,
		DisableTLSVerification: cfg.DisableTLSVerification,
		UseNativeRedirects:     cfg.UseNativeRedirects,
	}
	e.client = e.buildClient()
	return e
}

func (e *HTTPExecutor) buildClient() *http.Client {
	dialer := &net.Dialer{Timeout: e.ConnectTimeout}
	transport := &http.Transport{
		DialContext: dialer.DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: e.DisableTLSVerification,
		},
	}
	client := &http.Client{
		Transport: transport,
		Timeout:   e.ConnectTimeout + e.ReadTimeout,
	}
	if !e.UseNativeRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client
}

// Execute issues one attempt against req's current endpoint.
func (e *HTTPExecutor) Execute(ctx context.Context, req *Request) (*Response, error) {
	uri := req.CurrentURI()

	var bodyReader io.Reader
	if req.Method == MethodPOST && len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), uri.String(), bodyReader)
	if err != nil {
		return nil, &ProtocolError{Message: "could not build wire request", Cause: err}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	httpResp, err := e.client.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	return &Response{
		Bytes:          data,
		Status:         httpResp.StatusCode,
		Headers:        map[string][]string(httpResp.Header),
		RequestID:      req.ID(),
		ResponseTimeMs: elapsed.Milliseconds(),
		CreatedAt:      time.Now(),
	}, nil
}

// classifyTransportError maps a net/http error into a typed TransportError
// so the retry policy can branch on kind rather than on ad-hoc string
// matching.
func classifyTransportError(err error) *TransportError {
	kind := TransportErrorUnknown

	var netErr net.Error
	var opErr *net.OpError
	var dnsErr *net.DNSError
	var certErr x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var tlsRecordErr tls.RecordHeaderError

	switch {
	case errors.As(err, &dnsErr):
		kind = TransportErrorDNS
	case errors.As(err, &certErr), errors.As(err, &hostnameErr):
		kind = TransportErrorTLSCertificate
	case errors.As(err, &tlsRecordErr):
		kind = TransportErrorTLSProtocol
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = TransportErrorTimeout
	case errors.As(err, &opErr):
		if opErr.Op == "dial" {
			kind = TransportErrorConnectionRefused
		} else {
			kind = TransportErrorRouteUnreachable
		}
		if opErr.Err != nil {
			if _, ok := opErr.Err.(*net.AddrError); ok {
				kind = TransportErrorRouteUnreachable
			}
		}
	}

	return &TransportError{Kind: kind, Cause: err}
}
