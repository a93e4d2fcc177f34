package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ismaiel54/agent-trading-gateway/internal/events"
	"github.com/ismaiel54/agent-trading-gateway/internal/ledger"
	"github.com/ismaiel54/agent-trading-gateway/internal/observability"
	"github.com/ismaiel54/agent-trading-gateway/internal/router"
	"github.com/ismaiel54/agent-trading-gateway/internal/toolkit"
)

// Toolkit is the agent surface the API exposes
type Toolkit interface {
	PlaceOrder(ctx context.Context, req toolkit.PlaceRequest) (toolkit.PlaceResult, error)
	CancelOrder(ctx context.Context, orderID, symbol, side string) (toolkit.CancelResult, error)
	ReplaceOrder(ctx context.Context, req toolkit.ReplaceRequest) (toolkit.ReplaceResult, error)
	PollFills(ctx context.Context) []ledger.Fill
	PollOrderEvents(ctx context.Context) []events.Event
	PollMarketData(ctx context.Context) []events.Event
	PollSecurityStatus(ctx context.Context) []events.Event
	Portfolio(ctx context.Context) ledger.Snapshot
	Symbols(ctx context.Context) ([]string, error)
	LastPrice(ctx context.Context, symbol string) (float64, bool)
	MarketData(ctx context.Context, kind router.SubscriptionType, p toolkit.MarketDataParams) (string, error)
	SecurityStatus(ctx context.Context, kind router.SubscriptionType, symbol, reqID string) (string, error)
	StartEpisode(ctx context.Context, name string, overrides map[string]any) (toolkit.EpisodeInfo, error)
	GradeEpisode(ctx context.Context) (toolkit.GradeResult, error)
	SessionState() toolkit.SessionStatus
	Reconnect(ctx context.Context) error
}

// Server is the JSON-over-HTTP toolkit API
type Server struct {
	addr   string
	engine *gin.Engine
	logger *zap.Logger
}

// NewServer builds the gin engine. health may be nil.
func NewServer(addr string, tk Toolkit, health *observability.HealthChecker, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	if health != nil {
		engine.GET("/healthz", gin.WrapF(health.HandleHealthz))
		engine.GET("/readyz", gin.WrapF(health.HandleReadyz))
	}

	h := &handlers{tk: tk, logger: logger}
	h.register(engine.Group("/api/v1"))

	return &Server{addr: addr, engine: engine, logger: logger}
}

// Handler returns the underlying http.Handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.engine}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP API", zap.String("addr", s.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	case err := <-errCh:
		return err
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
		)
	}
}
