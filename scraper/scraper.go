// Package scraper drives the crawl over HTTP with colly and feeds
// extracted records into the output pipeline.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-scrape-whisky/config"
	"github.com/aluiziolira/go-scrape-whisky/crawl"
	"github.com/aluiziolira/go-scrape-whisky/models"
	"github.com/aluiziolira/go-scrape-whisky/pipeline"
	"github.com/aluiziolira/go-scrape-whisky/profile"
)

// Keys stored on each request's colly.Context.
const (
	ctxSite    = "site"
	ctxState   = "state"
	ctxLastMod = "lastmod"
	ctxStart   = "start"
)

type site struct {
	profile *profile.Profile
	machine *crawl.Machine
}

// Scraper runs the sitemap crawl of one or more sites on a shared collector.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	sites     map[string]*site
	order     []string
	retry     *retryManager
	Metrics   *Metrics

	requestCount int64
	pageCount    int64
	errorCount   int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int
	skipped      map[string]int
	visits       map[string]int

	handlersOnce sync.Once
}

// NewScraper builds a scraper that crawls every profile in profiles.
func NewScraper(cfg *config.Config, profiles []*profile.Profile) (*Scraper, error) {
	if len(profiles) == 0 {
		return nil, errors.New("no site profiles to crawl")
	}

	sites := make(map[string]*site, len(profiles))
	order := make([]string, 0, len(profiles))
	var (
		domains []string
		rules   []*colly.LimitRule
	)
	seenDomain := make(map[string]bool)
	addDomain := func(host string) {
		if host != "" && !seenDomain[host] {
			seenDomain[host] = true
			domains = append(domains, host)
		}
	}

	for _, p := range profiles {
		if _, dup := sites[p.Name]; dup {
			return nil, fmt.Errorf("site %s listed twice", p.Name)
		}
		// The root sitemap host must sit under the domain its LimitRule covers.
		if err := p.Validate(); err != nil {
			return nil, err
		}
		root, err := url.Parse(p.RootSitemap)
		if err != nil {
			return nil, fmt.Errorf("parse root sitemap of %s: %w", p.Name, err)
		}
		addDomain(p.Domain)
		addDomain(root.Hostname())

		sites[p.Name] = &site{profile: p, machine: crawl.NewMachine(p)}
		order = append(order, p.Name)
		rules = append(rules, &colly.LimitRule{
			DomainGlob:  "*" + p.Domain,
			Parallelism: cfg.Parallelism,
			RandomDelay: p.RandomDelay,
		})
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.AllowedDomains(domains...),
		colly.UserAgent(cfg.UserAgent),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limits(rules); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	s := &Scraper{
		cfg:          cfg,
		collector:    collector,
		sites:        sites,
		order:        order,
		errorsByType: make(map[string]int),
		skipped:      make(map[string]int),
		visits:       make(map[string]int),
		Metrics:      NewMetrics(),
	}
	s.retry = newRetryManager(cfg, s.Metrics)
	return s, nil
}

// Run crawls every site from its root sitemap and streams records through
// the pipeline. It returns once all requests and pending retries are done
// or ctx is cancelled.
func (s *Scraper) Run(ctx context.Context, p *pipeline.Pipeline) (*models.ScraperResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.retry.SetContext(ctx)
	s.configureHandlers(ctx, p)

	start := time.Now()
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			s.retry.Stop()
		case <-done:
		}
	}()

	var started int
	for _, name := range s.order {
		st := s.sites[name]
		slog.Info("crawling site",
			slog.String("site", name),
			slog.String("root_sitemap", st.profile.RootSitemap),
			slog.Duration("random_delay", st.profile.RandomDelay),
		)
		if s.visit(ctx, st, crawl.Visit{URL: st.profile.RootSitemap, State: crawl.RootSitemap}) {
			started++
		}
	}
	if started == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("no root sitemap could be requested")
	}

	for {
		s.collector.Wait()
		if !s.retry.Wait() {
			break
		}
	}
	s.retry.Stop()

	result := &models.ScraperResult{
		StartTime:     start,
		EndTime:       time.Now(),
		ErrorCount:    int(atomic.LoadInt64(&s.errorCount)),
		FailedURLs:    s.snapshotFailedURLs(),
		ErrorsByType:  snapshot(&s.mu, s.errorsByType),
		SkippedByKind: snapshot(&s.mu, s.skipped),
		VisitsByState: snapshot(&s.mu, s.visits),
		RetryCount:    s.retry.TotalRetries(),
		RequestCount:  int(atomic.LoadInt64(&s.requestCount)),
		PageCount:     int(atomic.LoadInt64(&s.pageCount)),
	}

	if metrics := p.GetMetrics(); metrics != nil {
		if processed, ok := metrics["processed_records"].(int64); ok {
			result.TotalCount = int(processed)
		}
	}

	return result, nil
}

// Sites lists the crawled site names in the order they are started.
func (s *Scraper) Sites() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// visit issues a request for v with a fresh context carrying the site and
// crawl state. It reports whether the request was queued.
func (s *Scraper) visit(ctx context.Context, st *site, v crawl.Visit) bool {
	if ctx.Err() != nil {
		return false
	}
	if v.State == crawl.PageDetail && !s.reservePage() {
		return false
	}

	reqCtx := colly.NewContext()
	reqCtx.Put(ctxSite, st.profile.Name)
	reqCtx.Put(ctxState, v.State)
	reqCtx.Put(ctxLastMod, v.LastMod)

	if err := s.collector.Request(http.MethodGet, v.URL, nil, reqCtx, nil); err != nil {
		if v.State == crawl.PageDetail {
			atomic.AddInt64(&s.pageCount, -1)
		}
		level := slog.LevelWarn
		if errors.Is(err, colly.ErrAlreadyVisited) {
			level = slog.LevelDebug
		}
		slog.Log(ctx, level, "visit not queued",
			slog.String("site", st.profile.Name),
			slog.String("state", v.State.String()),
			slog.String("url", v.URL),
			slog.Any("error", err),
		)
		return false
	}

	s.mu.Lock()
	s.visits[v.State.String()]++
	s.mu.Unlock()
	s.Metrics.IncVisit(v.State.String())
	return true
}

// reservePage claims one of the MaxPages product page slots.
func (s *Scraper) reservePage() bool {
	limit := int64(s.cfg.MaxPages)
	for {
		n := atomic.LoadInt64(&s.pageCount)
		if n >= limit {
			return false
		}
		if atomic.CompareAndSwapInt64(&s.pageCount, n, n+1) {
			return true
		}
	}
}

func (s *Scraper) configureHandlers(ctx context.Context, p *pipeline.Pipeline) {
	s.handlersOnce.Do(func() {
		s.collector.OnRequest(func(r *colly.Request) {
			if ctx.Err() != nil {
				r.Abort()
				return
			}
			r.Ctx.Put(ctxStart, time.Now())
			current := atomic.AddInt64(&s.requestCount, 1)
			s.Metrics.IncRequest("started")
			if current%50 == 0 {
				slog.Debug("scraper request progress",
					slog.Int64("requests", current),
					slog.Int64("pages", atomic.LoadInt64(&s.pageCount)),
					slog.String("url", r.URL.String()),
				)
			}
		})

		s.collector.OnResponse(func(r *colly.Response) {
			s.Metrics.IncRequest("completed")
			if start, ok := r.Ctx.GetAny(ctxStart).(time.Time); ok {
				s.Metrics.ObserveDuration(time.Since(start))
			}
			s.handleResponse(ctx, p, r)
		})

		s.collector.OnError(func(r *colly.Response, err error) {
			s.Metrics.IncRequest("failed")
			statusCode := 0
			if r != nil {
				statusCode = r.StatusCode
			}
			classified := classifyError(err, statusCode)
			category := errorTypeLabel(classified)

			pageURL := ""
			if r != nil && r.Request != nil && r.Request.URL != nil {
				pageURL = r.Request.URL.String()
			}
			s.recordError(category)
			slog.Error("request error",
				slog.String("url", pageURL),
				slog.Int("status", statusCode),
				slog.String("category", category),
				slog.Any("error", err),
			)

			var retry func() error
			var fetchErr *FetchError
			if r != nil && r.Request != nil && (!errors.As(classified, &fetchErr) || fetchErr.Retryable()) {
				retry = r.Request.Retry
			}
			if retry == nil || !s.retry.Schedule(pageURL, retry) {
				s.mu.Lock()
				s.failedURLs = append(s.failedURLs, pageURL)
				s.mu.Unlock()
			}
		})
	})
}

func (s *Scraper) handleResponse(ctx context.Context, p *pipeline.Pipeline, r *colly.Response) {
	pageURL := r.Request.URL.String()
	st, ok := s.sites[r.Ctx.Get(ctxSite)]
	if !ok {
		slog.Warn("response without site", slog.String("url", pageURL))
		return
	}
	state, ok := r.Ctx.GetAny(ctxState).(crawl.State)
	if !ok {
		slog.Warn("response without crawl state", slog.String("url", pageURL))
		return
	}

	outcome, err := st.machine.Handle(state, pageURL, r.Body)
	if err != nil {
		s.recordError("parse")
		s.mu.Lock()
		s.failedURLs = append(s.failedURLs, pageURL)
		s.mu.Unlock()
		slog.Error("document error",
			slog.String("site", st.profile.Name),
			slog.String("state", state.String()),
			slog.String("url", pageURL),
			slog.Any("error", err),
		)
		return
	}

	if len(outcome.Visits) > 0 {
		slog.Debug("sitemap expanded",
			slog.String("site", st.profile.Name),
			slog.String("state", state.String()),
			slog.String("url", pageURL),
			slog.Int("visits", len(outcome.Visits)),
		)
	}
	for _, v := range outcome.Visits {
		if ctx.Err() != nil {
			return
		}
		s.visit(ctx, st, v)
	}

	if outcome.Skip != nil {
		reason := outcome.Skip.Reason()
		s.mu.Lock()
		s.skipped[st.profile.Name+"/"+reason]++
		s.mu.Unlock()
		s.Metrics.IncSkipped(st.profile.Name, reason)
		slog.Warn("page skipped",
			slog.String("site", st.profile.Name),
			slog.String("url", pageURL),
			slog.String("reason", reason),
			slog.Any("error", outcome.Skip),
		)
	}

	if outcome.Record != nil {
		s.Metrics.IncRecords(st.profile.Name)
		if lastMod := r.Ctx.Get(ctxLastMod); lastMod != "" {
			slog.Debug("record extracted",
				slog.String("url", pageURL),
				slog.String("lastmod", lastMod),
			)
		}
		if err := p.Process(outcome.Record); err != nil && !errors.Is(err, pipeline.ErrPipelineClosed) {
			slog.Error("pipeline process error", slog.Any("error", err))
		}
	}
}

func (s *Scraper) recordError(category string) {
	atomic.AddInt64(&s.errorCount, 1)
	s.mu.Lock()
	s.errorsByType[category]++
	s.mu.Unlock()
	s.Metrics.IncError(category)
}

func (s *Scraper) snapshotFailedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failedURLs))
	copy(out, s.failedURLs)
	sort.Strings(out)
	return out
}

func snapshot(mu *sync.Mutex, m map[string]int) map[string]int {
	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
