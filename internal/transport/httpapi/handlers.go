package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ismaiel54/agent-trading-gateway/internal/events"
	"github.com/ismaiel54/agent-trading-gateway/internal/ledger"
	"github.com/ismaiel54/agent-trading-gateway/internal/router"
	"github.com/ismaiel54/agent-trading-gateway/internal/scenario"
	"github.com/ismaiel54/agent-trading-gateway/internal/session"
	"github.com/ismaiel54/agent-trading-gateway/internal/toolkit"
	"github.com/ismaiel54/agent-trading-gateway/internal/venue"
)

type handlers struct {
	tk     Toolkit
	logger *zap.Logger
}

func (h *handlers) register(g *gin.RouterGroup) {
	g.POST("/orders", h.placeOrder)
	g.POST("/orders/:id/cancel", h.cancelOrder)
	g.POST("/orders/:id/replace", h.replaceOrder)

	g.GET("/fills", h.pollFills)
	g.GET("/order-events", h.pollOrderEvents)
	g.GET("/market-data", h.pollMarketData)
	g.GET("/security-status", h.pollSecurityStatus)

	g.POST("/market-data/:kind", h.marketDataRequest)
	g.POST("/security-status/:kind", h.securityStatusRequest)

	g.GET("/portfolio", h.portfolio)
	g.GET("/symbols", h.symbols)
	g.GET("/symbols/:symbol/last-price", h.lastPrice)

	g.GET("/scenarios", h.scenarios)
	g.POST("/episodes", h.startEpisode)
	g.POST("/episodes/current/grade", h.gradeEpisode)

	g.GET("/session", h.sessionState)
	g.POST("/session/reconnect", h.reconnect)
}

// eventEnvelope tags each polled event with its kind
type eventEnvelope struct {
	Kind  events.Kind  `json:"kind"`
	Event events.Event `json:"event"`
}

func envelope(evs []events.Event) []eventEnvelope {
	out := make([]eventEnvelope, 0, len(evs))
	for _, ev := range evs {
		out = append(out, eventEnvelope{Kind: ev.Kind(), Event: ev})
	}
	return out
}

func (h *handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	body := gin.H{"error": err.Error()}
	var verr *router.ValidationError
	if errors.As(err, &verr) {
		body["field"] = verr.Field
	}
	c.JSON(status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, router.ErrValidation), errors.Is(err, scenario.ErrInvalidParams):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientPosition),
		errors.Is(err, ledger.ErrInvalidOrder),
		errors.Is(err, ledger.ErrDuplicateOrder):
		return http.StatusUnprocessableEntity
	case errors.Is(err, toolkit.ErrUnknownOrder),
		errors.Is(err, scenario.ErrUnknownScenario),
		errors.Is(err, venue.ErrUnknownListing):
		return http.StatusNotFound
	case errors.Is(err, toolkit.ErrNoEpisode), errors.Is(err, ledger.ErrReplacePending):
		return http.StatusConflict
	case errors.Is(err, session.ErrNotConnected), errors.Is(err, session.ErrDisconnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, venue.ErrUnexpectedStatus), errors.Is(err, venue.ErrBadPayload):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *handlers) placeOrder(c *gin.Context) {
	var req toolkit.PlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.tk.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type cancelBody struct {
	Symbol string `json:"symbol"`
	Side   string `json:"side"`
}

func (h *handlers) cancelOrder(c *gin.Context) {
	var body cancelBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	res, err := h.tk.CancelOrder(c.Request.Context(), c.Param("id"), body.Symbol, body.Side)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

func (h *handlers) replaceOrder(c *gin.Context) {
	var req toolkit.ReplaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.OrderID = c.Param("id")
	res, err := h.tk.ReplaceOrder(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

func (h *handlers) pollFills(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"fills": h.tk.PollFills(c.Request.Context())})
}

func (h *handlers) pollOrderEvents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": envelope(h.tk.PollOrderEvents(c.Request.Context()))})
}

func (h *handlers) pollMarketData(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": envelope(h.tk.PollMarketData(c.Request.Context()))})
}

func (h *handlers) pollSecurityStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": envelope(h.tk.PollSecurityStatus(c.Request.Context()))})
}

func subscriptionKind(c *gin.Context) (router.SubscriptionType, bool) {
	kind := router.SubscriptionType(strings.ToUpper(c.Param("kind")))
	switch kind {
	case router.Snapshot, router.Subscribe, router.Unsubscribe:
		return kind, true
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "kind must be snapshot, subscribe or unsubscribe"})
	return "", false
}

func (h *handlers) marketDataRequest(c *gin.Context) {
	kind, ok := subscriptionKind(c)
	if !ok {
		return
	}
	var p toolkit.MarketDataParams
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.tk.MarketData(c.Request.Context(), kind, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"md_req_id": id})
}

type securityStatusBody struct {
	Symbol string `json:"symbol"`
	ReqID  string `json:"req_id"`
}

func (h *handlers) securityStatusRequest(c *gin.Context) {
	kind, ok := subscriptionKind(c)
	if !ok {
		return
	}
	var body securityStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.tk.SecurityStatus(c.Request.Context(), kind, body.Symbol, body.ReqID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"req_id": id})
}

func (h *handlers) portfolio(c *gin.Context) {
	c.JSON(http.StatusOK, h.tk.Portfolio(c.Request.Context()))
}

func (h *handlers) symbols(c *gin.Context) {
	symbols, err := h.tk.Symbols(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbols": symbols})
}

func (h *handlers) lastPrice(c *gin.Context) {
	symbol := c.Param("symbol")
	px, ok := h.tk.LastPrice(c.Request.Context(), symbol)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no fills for " + symbol})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "price": px})
}

func (h *handlers) scenarios(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"scenarios": scenario.Names()})
}

type startEpisodeBody struct {
	Scenario string         `json:"scenario" binding:"required"`
	Params   map[string]any `json:"params"`
}

func (h *handlers) startEpisode(c *gin.Context) {
	var body startEpisodeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	info, err := h.tk.StartEpisode(c.Request.Context(), body.Scenario, body.Params)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (h *handlers) gradeEpisode(c *gin.Context) {
	res, err := h.tk.GradeEpisode(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) sessionState(c *gin.Context) {
	c.JSON(http.StatusOK, h.tk.SessionState())
}

func (h *handlers) reconnect(c *gin.Context) {
	if err := h.tk.Reconnect(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.tk.SessionState())
}
