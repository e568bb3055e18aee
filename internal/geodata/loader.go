// Package geodata fetches GeoJSON FeatureCollections for the dashboard.
package geodata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/joeblew999/geodash/internal/metrics"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// maxBody caps a single GeoJSON response.
const maxBody = 64 << 20

// Options configures a Loader.
type Options struct {
	// BaseURL resolves relative paths. Empty means Root is served through
	// a file transport.
	BaseURL    string
	Root       string
	Timeout    time.Duration
	RatePerSec float64
	// Client overrides the HTTP client (tests).
	Client *http.Client
}

// Paths are the three base datasets.
type Paths struct {
	Points string
	Areas  string
	Routes string
}

// BaseData holds the base datasets. Every field is non-nil after LoadBase.
type BaseData struct {
	Points *geojson.FeatureCollection
	Areas  *geojson.FeatureCollection
	Routes *geojson.FeatureCollection
}

// StatusError is returned by Fetch for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.URL)
}

// Loader fetches GeoJSON over HTTP.
type Loader struct {
	client  *http.Client
	base    *url.URL
	limiter *rate.Limiter
	log     *zap.Logger
}

// New builds a Loader from opts.
func New(opts Options) (*Loader, error) {
	client := opts.Client
	base := opts.BaseURL
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
		if base == "" {
			root := opts.Root
			if root == "" {
				root = "."
			}
			t := &http.Transport{}
			t.RegisterProtocol("file", http.NewFileTransport(http.Dir(root)))
			client.Transport = t
		}
	}
	if base == "" {
		base = "file:///"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, eris.Wrapf(err, "geodata: parse base url %q", base)
	}

	l := &Loader{
		client: client,
		base:   u,
		log:    zap.L().With(zap.String("component", "geodata")),
	}
	if opts.RatePerSec > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}
	return l, nil
}

// Resolve turns a relative data path into an absolute URL.
func (l *Loader) Resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", eris.Wrapf(err, "geodata: parse path %q", path)
	}
	return l.base.ResolveReference(ref).String(), nil
}

// Fetch retrieves and decodes a FeatureCollection. Any failure is returned.
func (l *Loader) Fetch(ctx context.Context, path string) (*geojson.FeatureCollection, error) {
	start := time.Now()
	defer func() {
		metrics.FetchDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	}()

	fc, err := l.fetch(ctx, path)
	if err != nil {
		metrics.FetchTotal.WithLabelValues("fail").Inc()
		return nil, err
	}
	metrics.FetchTotal.WithLabelValues("ok").Inc()
	return fc, nil
}

func (l *Loader) fetch(ctx context.Context, path string) (*geojson.FeatureCollection, error) {
	target, err := l.Resolve(path)
	if err != nil {
		return nil, err
	}
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "geodata: rate limit wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geodata: build request")
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "geodata: get %s", target)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, eris.Wrap(&StatusError{URL: target, Code: resp.StatusCode}, "geodata: fetch")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, eris.Wrapf(err, "geodata: read %s", target)
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, eris.Wrapf(err, "geodata: decode %s", target)
	}
	if fc.Features == nil {
		fc.Features = []*geojson.Feature{}
	}
	return fc, nil
}

// Load is the fail-open variant of Fetch: every failure is logged and
// yields an empty FeatureCollection.
func (l *Loader) Load(ctx context.Context, path string) *geojson.FeatureCollection {
	fc, err := l.Fetch(ctx, path)
	if err != nil {
		l.log.Warn("geojson load failed, using empty collection",
			zap.String("path", path),
			zap.Error(err),
		)
		return geojson.NewFeatureCollection()
	}
	l.log.Debug("geojson loaded",
		zap.String("path", path),
		zap.Int("features", len(fc.Features)),
	)
	return fc
}

// LoadBase loads the three base datasets concurrently.
func (l *Loader) LoadBase(ctx context.Context, p Paths) BaseData {
	var data BaseData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data.Points = l.Load(gctx, p.Points)
		return nil
	})
	g.Go(func() error {
		data.Areas = l.Load(gctx, p.Areas)
		return nil
	})
	g.Go(func() error {
		data.Routes = l.Load(gctx, p.Routes)
		return nil
	})
	_ = g.Wait()
	return data
}
