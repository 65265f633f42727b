package livehttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"macdbot/internal/agent"
	"macdbot/internal/gateway/exchange"
	"macdbot/internal/report"
	"macdbot/internal/store/eventlog"
	"macdbot/internal/store/gormstore"
	"macdbot/internal/strategy"
	"macdbot/internal/trader"
)

// Router exposes the agent control and inspection endpoints.
type Router struct {
	Symbol    string
	Agent     *agent.Agent
	Executor  exchange.Executor
	Store     *gormstore.Store
	Events    *eventlog.Journal
	Templates *strategy.Registry
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/status", r.handleStatus)
	group.POST("/start", r.handleStart)
	group.POST("/stop", r.handleStop)
	group.GET("/balance", r.handleBalance)
	group.GET("/positions", r.handlePositions)
	group.GET("/klines", r.handleKlines)
	group.POST("/positions/:id/close", r.handleClosePosition)
	group.GET("/report", r.handleReport)
	if r.Store != nil {
		group.GET("/positions/history", r.handlePositionHistory)
	}
	if r.Events != nil {
		group.GET("/events", r.handleEvents)
	}
	if r.Templates != nil {
		group.GET("/templates", r.handleTemplates)
	}
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.Agent.Status())
}

func (r *Router) handleStart(c *gin.Context) {
	if err := r.Agent.Start(context.Background()); err != nil {
		if errors.Is(err, agent.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

func (r *Router) handleStop(c *gin.Context) {
	r.Agent.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

func (r *Router) handleBalance(c *gin.Context) {
	bal, err := r.Executor.GetBalance(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, bal)
}

func (r *Router) handlePositions(c *gin.Context) {
	active, closed := r.Agent.Manager().Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"active": active,
		"closed": closed,
	})
}

func (r *Router) handleKlines(c *gin.Context) {
	interval := c.DefaultQuery("interval", "1m")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	candles, err := r.Agent.Klines(c.Request.Context(), interval, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": r.Symbol, "interval": interval, "candles": candles})
}

func (r *Router) handlePositionHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	rows, err := r.Store.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

func (r *Router) handleClosePosition(c *gin.Context) {
	id := c.Param("id")
	err := r.Agent.Manager().ClosePosition(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, trader.ErrPositionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed", "id": id})
}

func (r *Router) handleReport(c *gin.Context) {
	_, closed := r.Agent.Manager().Snapshot()
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := report.Render(c.Writer, r.Symbol, closed); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (r *Router) handleEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, err := r.Events.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (r *Router) handleTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, r.Templates.Snapshot())
}
