package dashboard

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ReversalFlow/internal/calculator"
	"ReversalFlow/internal/model"
	"ReversalFlow/internal/report"
	"ReversalFlow/internal/scheduler"
	"ReversalFlow/internal/strategy"
)

const defaultHistoryLimit = 100

// row is an enriched bar with its read-time classification.
type row struct {
	model.EnrichedBar
	Signal model.Signal `json:"signal"`
}

func (s *Server) rows(bars []model.EnrichedBar) []row {
	out := make([]row, 0, len(bars))
	for _, b := range bars {
		out = append(out, row{EnrichedBar: b, Signal: s.engine.Classify(b)})
	}
	return out
}

// respondBars writes a bar list. Empty results and errors are distinct states.
func (s *Server) respondBars(c *gin.Context, bars []model.EnrichedBar, err error, emptyMsg string) {
	if err != nil {
		log.Printf("[ERROR] %s: %v", c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	rows := s.rows(bars)
	resp := gin.H{"data": rows, "count": len(rows)}
	if len(rows) == 0 {
		resp["message"] = emptyMsg
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHistory(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	limit := defaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	bars, err := s.cache.History(c.Request.Context(), symbol, limit)
	if err != nil || len(bars) == 0 {
		s.respondBars(c, bars, err, "No data available for "+symbol+". Please refresh data first.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  s.rows(bars),
		"count": len(bars),
		"range": priceRange(bars),
	})
}

// priceRange summarizes the high/low band of a newest-first history.
func priceRange(bars []model.EnrichedBar) gin.H {
	plain := make([]model.Bar, len(bars))
	for i, b := range bars {
		plain[i] = b.Bar
	}
	high, low, err := calculator.CalculateRange(plain, 0)
	if err != nil {
		return nil
	}
	pos, err := calculator.RangePosition(bars[0].Close, high, low)
	if err != nil {
		return nil
	}
	return gin.H{"high": high, "low": low, "position": pos}
}

func (s *Server) handleSnapshot(c *gin.Context) {
	bars, err := s.cache.LatestSnapshot(c.Request.Context())
	s.respondBars(c, bars, err, "No market data available. Please refresh data first.")
}

func (s *Server) handleOversold(c *gin.Context) {
	bars, err := s.cache.LatestOversold(c.Request.Context())
	s.respondBars(c, bars, err, "No oversold stocks found with current criteria.")
}

func (s *Server) handleOverview(c *gin.Context) {
	ctx := c.Request.Context()
	snap, err := s.cache.LatestSnapshot(ctx)
	if err != nil {
		log.Printf("[ERROR] overview snapshot: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	stats, err := s.reader.Stats(ctx)
	if err != nil {
		log.Printf("[ERROR] overview stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  report.Summarize(snap),
		"stats": stats,
	})
}

func (s *Server) handleRefresh(c *gin.Context) {
	// The batch outlives a dropped client; a half-finished refresh would
	// record every remaining symbol as failed.
	results, err := s.refresher.Refresh(context.WithoutCancel(c.Request.Context()))
	if errors.Is(err, scheduler.ErrRefreshInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	s.cache.Invalidate()
	if err != nil {
		log.Printf("[ERROR] manual refresh: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	failed := results.Failed()
	if failed == nil {
		failed = []string{}
	}
	resp := gin.H{
		"refreshed": len(results),
		"succeeded": results.Succeeded(),
		"failed":    failed,
	}
	if len(results) == 0 {
		resp["message"] = "All data is up to date."
	} else {
		resp["message"] = strings.TrimSpace(report.FormatCollectionSummary(results))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.reader.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type indexPage struct {
	Overview    report.Overview
	Oversold    []row
	Snapshot    []row
	Params      strategy.Params
	Error       string
	GeneratedAt string
}

func (s *Server) handleIndex(c *gin.Context) {
	ctx := c.Request.Context()
	page := indexPage{
		Params:      s.engine.Params(),
		GeneratedAt: time.Now().UTC().Format(model.DateTimeLayout),
	}

	snap, err := s.cache.LatestSnapshot(ctx)
	if err == nil {
		var over []model.EnrichedBar
		over, err = s.cache.LatestOversold(ctx)
		page.Oversold = s.rows(over)
	}
	if err != nil {
		log.Printf("[ERROR] index: %v", err)
		page.Error = err.Error()
		c.HTML(http.StatusInternalServerError, "index.html", page)
		return
	}
	page.Snapshot = s.rows(snap)
	page.Overview = report.Summarize(snap)
	c.HTML(http.StatusOK, "index.html", page)
}
