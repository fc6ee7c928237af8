package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"billsplit/internal/cache"
	"billsplit/internal/core"
	"billsplit/internal/ledger"
	"billsplit/internal/log"
	"billsplit/internal/session"
)

// Ledger is what the server needs from the expense store besides the
// session: change notifications for cache invalidation and a reload from
// the shared database before reads.
type Ledger interface {
	Subscribe(fn ledger.Observer) (cancel func())
	Sync(ctx context.Context) error
}

// Rates exposes the rate table and lets clients force a refresh.
type Rates interface {
	Base() string
	Rates() map[string]float64
	RefreshedAt() time.Time
	Refresh(ctx context.Context) error
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Session *session.Session
	Ledger  Ledger
	Rates   Rates
	DB      Pinger
	Logger  *log.Logger

	// RequestsPerMinute limits mutating requests per client. Zero means 60.
	RequestsPerMinute int
}

type Server struct {
	http.Server
	session *session.Session
	rates   Rates
	db      Pinger
	logger  *log.Logger

	rateLimiter *rateLimiter
	metrics     *securityMetrics
	ledger      Ledger
	charts      *cache.LRUCache[[]byte]
	cacheMgr    *cache.Manager
	// chartGen counts ledger changes. It is part of every chart cache key so
	// a render that raced a change is stored under a key nobody reads.
	chartGen atomic.Uint64

	unsubscribe  func()
	stopCleanup  context.CancelFunc
	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		session:     deps.Session,
		rates:       deps.Rates,
		db:          deps.DB,
		ledger:      deps.Ledger,
		logger:      logger,
		rateLimiter: newRateLimiter(deps.RequestsPerMinute),
		metrics:     &securityMetrics{},
		charts:      cache.NewLRUCache[[]byte](32, 10*time.Minute),
		cacheMgr:    cache.NewManager(logger),
	}
	s.cacheMgr.Register(s.charts)

	if deps.Ledger != nil {
		s.unsubscribe = deps.Ledger.Subscribe(func(c ledger.Change) {
			if c.Kind != ledger.ChangeSnapshot {
				s.chartGen.Add(1)
				s.charts.Purge()
			}
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopCleanup = cancel
	go func() { _ = s.cacheMgr.Run(ctx, 5*time.Minute) }()

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware)
	r.Use(log.AccessLogMiddleware)
	r.Use(s.withSecurityHeaders)
	r.Use(s.withSuspiciousRequestLogging)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.withRateLimit)
		r.Use(s.withLedgerSync)

		r.Get("/view", s.handleGetView)
		r.Patch("/view", s.handlePatchView)

		r.Get("/expenses", s.handleListExpenses)
		r.Get("/expenses/{id}", s.handleGetExpense)
		r.Post("/expenses", s.handleCreateExpense)
		r.Delete("/expenses/{id}", s.handleDeleteExpense)

		r.Get("/events", s.handleListEvents)
		r.Get("/categories", handleListCategories)

		r.Get("/rates", s.handleGetRates)
		r.Post("/rates/refresh", s.handleRefreshRates)

		r.Get("/report", s.handleReport)
		r.Get("/chart.png", s.handleChart)
	})
	return r
}

// Shutdown stops background routines and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.stopCleanup()
		s.rateLimiter.stop()
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed",
				log.NewFields().WithErrorType(log.ErrorTypeDatabase).WithError(err).ToSlice()...)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func handleListCategories(w http.ResponseWriter, r *http.Request) {
	type category struct {
		Name core.Category `json:"name"`
		Icon string        `json:"icon"`
	}
	cats := core.Categories()
	out := make([]category, len(cats))
	for i, c := range cats {
		out[i] = category{Name: c, Icon: c.Icon()}
	}
	writeJSON(w, http.StatusOK, out)
}

// withLedgerSync reloads the ledger before reads so records written by
// other processes sharing the database are visible. A failed reload is
// logged and the last snapshot is served.
func (s *Server) withLedgerSync(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.ledger != nil && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
			if err := s.ledger.Sync(r.Context()); err != nil {
				log.FromContext(r.Context()).WarnContext(r.Context(), "Ledger sync before read failed",
					log.NewFields().WithOperation(log.OpSync).WithErrorType(log.ErrorTypeDatabase).WithError(err).ToSlice()...)
			}
		}
		next.ServeHTTP(w, r)
	})
}
