package geodata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/cache"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/errors"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/observability"
)

// maxBodySize bounds a fetched dataset.
const maxBodySize = 512 << 20

// Client reads GeoJSON sources from disk or over HTTP.
type Client struct {
	http    *http.Client
	cache   cache.Cache
	keyer   cache.Keyer
	ttl     time.Duration
	refresh bool
	retry   cache.Backoff
	onLayer func(level feature.Level, source string)
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithCache caches fetched bodies in c for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(cl *Client) {
		if c != nil {
			cl.cache = c
			cl.ttl = ttl
		}
	}
}

// WithRefresh bypasses cached bodies. Fresh bodies are still stored.
func WithRefresh(refresh bool) Option {
	return func(cl *Client) { cl.refresh = refresh }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(cl *Client) {
		if h != nil {
			cl.http = h
		}
	}
}

// WithRetry sets the number of attempts and the initial backoff for
// transient HTTP failures.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(cl *Client) {
		cl.retry = cache.Backoff{Attempts: max(attempts, 1), Delay: backoff}
	}
}

// WithProgress calls fn before each layer is read.
func WithProgress(fn func(level feature.Level, source string)) Option {
	return func(cl *Client) { cl.onLayer = fn }
}

// WithLogger sets the client logger.
func WithLogger(l *log.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// NewClient creates a client. Without WithCache nothing is cached.
func NewClient(opts ...Option) *Client {
	cl := &Client{
		http:   &http.Client{Timeout: 2 * time.Minute},
		cache:  cache.NewNullCache(),
		keyer:  cache.NewLayerKeyer(),
		retry:  cache.DefaultBackoff,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// Read returns the raw bytes of the level layer at source, a local path or
// an http(s) URL. Only remote layers are cached.
func (c *Client) Read(ctx context.Context, level feature.Level, source string) ([]byte, error) {
	if !errors.IsURL(source) {
		if err := errors.ValidatePath(source); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(source)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.Wrap(errors.ErrCodeNotFound, err, "dataset %s", source)
			}
			return nil, fmt.Errorf("read dataset %s: %w", source, err)
		}
		return data, nil
	}

	if err := errors.ValidateURL(source); err != nil {
		return nil, err
	}
	key := c.keyer.LayerKey(string(level), source)
	if !c.refresh {
		if data, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			c.logger.Debug("dataset cache hit", "source", source, "bytes", len(data))
			return data, nil
		} else if err != nil {
			c.logger.Warn("dataset cache read failed", "source", source, "error", err)
		}
	}

	var data []byte
	err := c.retry.Do(ctx, func() error {
		var err error
		data, err = c.fetch(ctx, source)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrCodeNotFound):
			return nil, err
		case ctx.Err() != nil:
			return nil, errors.Wrap(errors.ErrCodeTimeout, err, "fetch %s", source)
		default:
			return nil, errors.Wrap(errors.ErrCodeNetwork, err, "fetch %s", source)
		}
	}

	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("dataset cache write failed", "source", source, "error", err)
	}
	return data, nil
}

// Load reads and decodes source as a layer of level.
func (c *Client) Load(ctx context.Context, source string, level feature.Level, keys Keys) ([]*feature.Feature, error) {
	if c.onLayer != nil {
		c.onLayer(level, source)
	}
	start := time.Now()
	data, err := c.Read(ctx, level, source)
	if err != nil {
		return nil, err
	}
	features, err := Decode(data, level, keys)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	c.logger.Info("layer loaded", "level", level, "source", source, "features", len(features), "took", time.Since(start).Round(time.Millisecond))
	return features, nil
}

// Sources names the two layers of a catalogue.
type Sources struct {
	States       string
	StateKeys    Keys
	Districts    string
	DistrictKeys Keys
}

// LoadCatalogue loads both layers into a new catalogue. Districts whose
// parent state is missing are kept and logged; selecting one falls back to
// a stub parent.
func (c *Client) LoadCatalogue(ctx context.Context, src Sources) (*Catalogue, error) {
	cat := NewCatalogue()

	states, err := c.Load(ctx, src.States, feature.LevelState, orDefault(src.StateKeys, feature.LevelState))
	if err != nil {
		return nil, err
	}
	cat.Add(states...)

	if src.Districts != "" {
		districts, err := c.Load(ctx, src.Districts, feature.LevelDistrict, orDefault(src.DistrictKeys, feature.LevelDistrict))
		if err != nil {
			return nil, err
		}
		cat.Add(districts...)
	}

	if orphans := cat.Orphans(); len(orphans) > 0 {
		c.logger.Warn("districts without a loaded state", "count", len(orphans), "first", orphans[0])
	}
	return cat, nil
}

func orDefault(k Keys, level feature.Level) Keys {
	if k == (Keys{}) {
		return DefaultKeys(level)
	}
	return k
}

func (c *Client) fetch(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	host := source
	if u, err := url.Parse(source); err == nil {
		host = u.Host
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.HTTP().OnFetch(ctx, host, 0, time.Since(start), err)
		return nil, cache.Transient(fmt.Errorf("%w: %v", cache.ErrNetwork, err))
	}
	defer resp.Body.Close()
	observability.HTTP().OnFetch(ctx, host, resp.StatusCode, time.Since(start), nil)

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.Wrap(errors.ErrCodeNotFound, cache.ErrNotFound, "dataset %s", source)
	case resp.StatusCode >= 500:
		return nil, cache.Transient(fmt.Errorf("%w: status %d", cache.ErrNetwork, resp.StatusCode))
	default:
		return nil, fmt.Errorf("%w: status %d", cache.ErrNetwork, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, cache.Transient(fmt.Errorf("%w: %v", cache.ErrNetwork, err))
	}
	if len(data) > maxBodySize {
		return nil, errors.New(errors.ErrCodeInvalidInput, "dataset %s exceeds %d bytes", source, maxBodySize)
	}
	return data, nil
}
