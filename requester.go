package authclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// AccessTokenSource yields the bearer token for the next request.
type AccessTokenSource interface {
	AccessToken() string
}

// Requester performs single HTTP calls against the backend. It never retries
// and never refreshes; that is the coordinator's job.
type Requester struct {
	client          *resty.Client
	tokens          AccessTokenSource
	requestIDHeader string
	logger          logrus.FieldLogger
}

func newRequester(cfg HTTPConfig, httpClient *http.Client, tokens AccessTokenSource, logger logrus.FieldLogger) *Requester {
	var rc *resty.Client
	if httpClient != nil {
		rc = resty.NewWithClient(httpClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetRetryCount(0).
		SetLogger(logger)
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	if cfg.UserAgent != "" {
		rc.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &Requester{
		client:          rc,
		tokens:          tokens,
		requestIDHeader: cfg.RequestIDHeader,
		logger:          logger,
	}
}

// Send issues req with the access token held at call time.
func (r *Requester) Send(ctx context.Context, req Request) (*Response, error) {
	return r.send(ctx, req, true)
}

// SendAnonymous issues req without an Authorization header.
func (r *Requester) SendAnonymous(ctx context.Context, req Request) (*Response, error) {
	return r.send(ctx, req, false)
}

func (r *Requester) send(ctx context.Context, req Request, bearer bool) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	method := strings.ToUpper(req.Method)
	requestID := RequestIDFromContext(ctx)

	builder := r.client.R().SetContext(ctx)
	for k, vs := range req.Header {
		for _, v := range vs {
			builder.Header.Add(k, v)
		}
	}
	if len(req.Query) > 0 {
		builder.SetQueryParamsFromValues(req.Query)
	}
	if req.Body != nil {
		if req.Header.Get("Content-Type") == "" {
			builder.SetHeader("Content-Type", "application/json")
		}
		builder.SetBody(req.Body)
	}
	if r.requestIDHeader != "" && requestID != "" {
		builder.SetHeader(r.requestIDHeader, requestID)
	}
	if bearer {
		if token := r.tokens.AccessToken(); token != "" {
			builder.SetAuthToken(token)
		}
	}

	entry := r.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"method":     method,
		"path":       req.Path,
	})

	started := time.Now()
	resp, err := builder.Execute(method, req.Path)
	if err != nil {
		entry.WithError(err).Debug("request: transport failure")
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, req.Path, err)
	}

	status := resp.StatusCode()
	entry.WithFields(logrus.Fields{
		"status":  status,
		"elapsed": time.Since(started),
	}).Debug("request: completed")

	if status < 200 || status > 299 {
		return nil, &HTTPError{
			Method:     method,
			Path:       req.Path,
			StatusCode: status,
			Body:       resp.Body(),
		}
	}

	return &Response{
		StatusCode: status,
		Header:     resp.Header(),
		Body:       resp.Body(),
	}, nil
}
