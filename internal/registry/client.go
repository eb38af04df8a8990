package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/extsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/extsync/internal/shared/faults"
)

const (
	privateTokenHeader = "PRIVATE-TOKEN"
	nextPageHeader     = "X-Next-Page"
	maxPages           = 1000
)

// Client talks to GitLab-style generic package registries. It holds no sync
// state; every call is request/response except OpenArtifact, which streams.
type Client struct {
	api      *resty.Client
	download *resty.Client
	limiter  *rate.Limiter
	breakers *resilience.Group
	creds    *Credentials
	scheme   string
	pageSize int
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// NewClient builds a client with retrying transport, a shared rate limit and
// one circuit breaker per registry host.
func NewClient(cfg config.RegistryConfig, creds *Credentials, logger *zap.Logger, metrics *monitoring.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if creds == nil {
		creds = NewCredentials()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = retryLogger{s: logger.Sugar()}
	if t, ok := retryClient.HTTPClient.Transport.(*http.Transport); ok && cfg.Timeout > 0 {
		t.ResponseHeaderTimeout = cfg.Timeout
	}

	api := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json").
		SetJSONUnmarshaler(sonic.Unmarshal)

	// Artifacts can be large; only the header wait is bounded.
	download := resty.NewWithClient(retryClient.StandardClient()).
		SetHeader("User-Agent", cfg.UserAgent)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	breakerSettings := resilience.DefaultSettings()
	breakerSettings.IsFailure = countsAgainstBreaker
	breakerSettings.OnStateChange = func(name string, from, to resilience.State) {
		logger.Warn("Registry circuit state changed",
			zap.String("host", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	return &Client{
		api:      api,
		download: download,
		limiter:  limiter,
		breakers: resilience.NewGroup(breakerSettings),
		creds:    creds,
		scheme:   cfg.AuthScheme,
		pageSize: pageSize,
		logger:   logger,
		metrics:  metrics,
	}
}

// Credentials returns the provider the client reads on every request.
func (c *Client) Credentials() *Credentials {
	return c.creds
}

// BreakerStates reports circuit state per registry host.
func (c *Client) BreakerStates() map[string]resilience.State {
	return c.breakers.States()
}

// ListPackages lists every package version under endpoint, following pages.
// Non-generic packages are skipped when the registry reports a type.
func (c *Client) ListPackages(ctx context.Context, endpoint string) ([]RawPackage, error) {
	all, err := getAll[RawPackage](ctx, c, "list_packages", endpoint, endpoint)
	if err != nil {
		return nil, err
	}

	out := all[:0]
	for _, p := range all {
		if p.PackageType != "" && p.PackageType != "generic" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// ListFiles lists the files attached to one package version.
func (c *Client) ListFiles(ctx context.Context, endpoint string, packageID int64) ([]PackageFile, error) {
	u, err := FilesURL(endpoint, packageID)
	if err != nil {
		return nil, faults.New(faults.KindConfig, "list_files", err)
	}
	return getAll[PackageFile](ctx, c, "list_files", endpoint, u)
}

// ResolveRegistryName fetches the parent project and returns its namespaced
// display name.
func (c *Client) ResolveRegistryName(ctx context.Context, endpoint string) (string, error) {
	u, err := ProjectURL(endpoint)
	if err != nil {
		return "", faults.New(faults.KindConfig, "resolve_name", err)
	}

	var project Project
	if _, err := c.getJSON(ctx, "resolve_name", endpoint, u, nil, &project); err != nil {
		return "", err
	}

	name := project.NameWithNamespace
	if name == "" {
		name = project.Name
	}
	if name == "" {
		return "", faults.Newf(faults.KindTransport, "resolve_name", "project %s has no name", redact(u))
	}
	return name, nil
}

// OpenArtifact starts streaming an artifact. The caller owns the returned
// body and must close it.
func (c *Client) OpenArtifact(ctx context.Context, ref ArtifactRef) (io.ReadCloser, error) {
	const op = "download"

	u, err := ArtifactURL(ref)
	if err != nil {
		return nil, faults.New(faults.KindConfig, op, err)
	}
	req, err := c.request(ctx, c.download, op)
	if err != nil {
		return nil, err
	}

	host := hostOf(ref.Endpoint)
	timer := monitoring.NewTimer(c.metrics, host, op)

	var body io.ReadCloser
	err = c.breakers.Get(host).Do(func() error {
		resp, err := req.SetDoNotParseResponse(true).Get(u)
		if err != nil {
			return faults.New(faults.KindTransport, op, err)
		}
		if resp.IsError() {
			resp.RawBody().Close()
			return classifyStatus(op, u, resp.StatusCode())
		}
		body = resp.RawBody()
		return nil
	})
	if err != nil {
		timer.Stop(resultLabel(err))
		return nil, c.breakerError(op, err)
	}
	timer.Stop("success")

	c.logger.Debug("Artifact stream opened", zap.String("artifact", ref.String()), zap.String("host", host))
	return body, nil
}

func getAll[T any](ctx context.Context, c *Client, op, endpoint, u string) ([]T, error) {
	var all []T
	page := "1"
	for n := 0; page != ""; n++ {
		if n >= maxPages {
			return nil, faults.Newf(faults.KindTransport, op, "pagination exceeded %d pages", maxPages)
		}

		var batch []T
		params := map[string]string{
			"page":     page,
			"per_page": strconv.Itoa(c.pageSize),
		}
		header, err := c.getJSON(ctx, op, endpoint, u, params, &batch)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)

		next := strings.TrimSpace(header.Get(nextPageHeader))
		if next == page {
			break
		}
		page = next
	}
	return all, nil
}

func (c *Client) getJSON(ctx context.Context, op, endpoint, u string, params map[string]string, out interface{}) (http.Header, error) {
	req, err := c.request(ctx, c.api, op)
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	host := hostOf(endpoint)
	timer := monitoring.NewTimer(c.metrics, host, op)

	var header http.Header
	err = c.breakers.Get(host).Do(func() error {
		resp, err := req.Get(u)
		if err != nil {
			return faults.New(faults.KindTransport, op, err)
		}
		if resp.IsError() {
			return classifyStatus(op, u, resp.StatusCode())
		}
		if err := sonic.Unmarshal(resp.Body(), out); err != nil {
			return faults.New(faults.KindTransport, op, fmt.Errorf("decode %s: %w", redact(u), err))
		}
		header = resp.Header()
		return nil
	})
	if err != nil {
		timer.Stop(resultLabel(err))
		return nil, c.breakerError(op, err)
	}
	timer.Stop("success")
	return header, nil
}

// request builds a request carrying the current credential. The credential is
// read here, per call, so token changes apply immediately.
func (c *Client) request(ctx context.Context, rc *resty.Client, op string) (*resty.Request, error) {
	token, ok := c.creds.Token()
	if !ok {
		return nil, faults.ErrNoCredential
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, faults.New(faults.KindTransport, op, fmt.Errorf("rate limit wait: %w", err))
	}

	req := rc.R().SetContext(ctx)
	if c.scheme == config.AuthBearer {
		req.SetAuthToken(token)
	} else {
		req.SetHeader(privateTokenHeader, token)
	}
	return req, nil
}

func (c *Client) breakerError(op string, err error) error {
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return faults.New(faults.KindTransport, op, err)
	}
	return err
}

func classifyStatus(op, u string, code int) error {
	statusErr := &StatusError{Op: op, URL: u, StatusCode: code}
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return faults.New(faults.KindTransport, op, faults.New(faults.KindAuth, op, statusErr))
	}
	return faults.New(faults.KindTransport, op, statusErr)
}

// countsAgainstBreaker ignores client-side statuses and cancellations; only
// outages should open the circuit.
func countsAgainstBreaker(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	return true
}

func resultLabel(err error) string {
	var se *StatusError
	switch {
	case errors.As(err, &se):
		return strconv.Itoa(se.StatusCode)
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

