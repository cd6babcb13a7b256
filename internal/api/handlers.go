package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xhit/go-str2duration/v2"

	"github.com/hamidbarzin/cryptobarzin/internal/cache"
	"github.com/hamidbarzin/cryptobarzin/internal/market"
	"github.com/hamidbarzin/cryptobarzin/internal/models"
	"github.com/hamidbarzin/cryptobarzin/internal/scheduler"
)

const defaultEventLimit = 50

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func fail(c *gin.Context, code int, err error) {
	c.JSON(code, Response{Success: false, Error: err.Error()})
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	db := "disabled"
	if s.deps.Events != nil {
		db = "ok"
		if err := s.deps.Events.Ping(ctx); err != nil {
			db = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{
		"status":    status,
		"version":   s.deps.Version,
		"database":  db,
		"scheduler": s.deps.Scheduler.Status().Running,
	})
}

func (s *Server) startScheduler(c *gin.Context) {
	if err := s.deps.Scheduler.Start(); err != nil {
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			fail(c, http.StatusConflict, err)
			return
		}
		fail(c, http.StatusInternalServerError, err)
		return
	}
	success(c, s.deps.Scheduler.Status())
}

func (s *Server) stopScheduler(c *gin.Context) {
	if err := s.deps.Scheduler.Stop(); err != nil {
		if errors.Is(err, scheduler.ErrNotRunning) {
			fail(c, http.StatusConflict, err)
			return
		}
		fail(c, http.StatusInternalServerError, err)
		return
	}
	success(c, s.deps.Scheduler.Status())
}

func (s *Server) schedulerStatus(c *gin.Context) {
	success(c, s.deps.Scheduler.Status())
}

// settingsRequest accepts the tick interval as integer seconds or as a
// duration string such as "90s", "2h" or "1d".
type settingsRequest struct {
	ActiveHoursStart      *int        `json:"active_hours_start"`
	ActiveHoursEnd        *int        `json:"active_hours_end"`
	MessageSendingEnabled *bool       `json:"message_sending_enabled"`
	Interval              interface{} `json:"interval"`
	AutoStart             *bool       `json:"auto_start"`
}

func (r settingsRequest) patch() (scheduler.SettingsPatch, error) {
	p := scheduler.SettingsPatch{
		ActiveHoursStart:      r.ActiveHoursStart,
		ActiveHoursEnd:        r.ActiveHoursEnd,
		MessageSendingEnabled: r.MessageSendingEnabled,
		AutoStart:             r.AutoStart,
	}
	if r.Interval != nil {
		d, err := parseInterval(r.Interval)
		if err != nil {
			return p, err
		}
		p.Interval = &d
	}
	return p, nil
}

func parseInterval(v interface{}) (time.Duration, error) {
	switch x := v.(type) {
	case float64:
		if x != float64(int64(x)) {
			return 0, fmt.Errorf("interval must be whole seconds, got %v", x)
		}
		return time.Duration(x) * time.Second, nil
	case string:
		x = strings.TrimSpace(x)
		if secs, err := strconv.Atoi(x); err == nil {
			return time.Duration(secs) * time.Second, nil
		}
		d, err := str2duration.ParseDuration(x)
		if err != nil {
			return 0, fmt.Errorf("invalid interval %q: %w", x, err)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("interval must be a number of seconds or a duration string")
	}
}

func (s *Server) updateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if patch.Empty() {
		fail(c, http.StatusBadRequest, errors.New("no settings to update"))
		return
	}

	st, err := s.deps.Scheduler.UpdateSettings(c.Request.Context(), patch)
	if err != nil {
		if errors.Is(err, scheduler.ErrInvalidSettings) {
			fail(c, http.StatusBadRequest, err)
			return
		}
		fail(c, http.StatusInternalServerError, err)
		return
	}
	success(c, st)
}

type alertRequest struct {
	Symbol      string  `json:"symbol" binding:"required"`
	TargetPrice float64 `json:"target_price" binding:"required"`
	Direction   string  `json:"direction" binding:"required"`
}

func (r alertRequest) parse() (models.Direction, error) {
	return models.ParseDirection(r.Direction)
}

func (s *Server) listAlerts(c *gin.Context) {
	success(c, s.deps.Alerts.Get(c.Query("symbol")))
}

func (s *Server) setAlert(c *gin.Context) {
	var req alertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	dir, err := req.parse()
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := s.deps.Alerts.Set(req.Symbol, req.TargetPrice, dir); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: s.deps.Alerts.Get(req.Symbol)})
}

func (s *Server) removeAlert(c *gin.Context) {
	var req alertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	dir, err := req.parse()
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if !s.deps.Alerts.Remove(req.Symbol, req.TargetPrice, dir) {
		fail(c, http.StatusNotFound, errors.New("alert not found"))
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Message: "alert removed"})
}

func (s *Server) checkAlerts(c *gin.Context) {
	events := s.deps.Alerts.Check(c.Request.Context())
	if events == nil {
		events = []models.TriggeredEvent{}
	}
	success(c, events)
}

func (s *Server) alertEvents(c *gin.Context) {
	if s.deps.Events == nil {
		fail(c, http.StatusServiceUnavailable, errors.New("event history is disabled"))
		return
	}
	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			fail(c, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}
	events, err := s.deps.Events.RecentEvents(c.Request.Context(), c.Query("symbol"), limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	success(c, events)
}

func (s *Server) price(c *gin.Context) {
	symbol := c.Param("base") + "/" + c.Param("quote")
	q, err := s.deps.Prices.Quote(c.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, market.ErrNoPrice) {
			fail(c, http.StatusBadGateway, err)
			return
		}
		fail(c, http.StatusBadRequest, err)
		return
	}
	success(c, q)
}

func (s *Server) cacheStats(c *gin.Context) {
	stats := make([]cache.Stats, 0, len(s.deps.Caches))
	for _, m := range s.deps.Caches {
		stats = append(stats, m.Stats())
	}
	success(c, stats)
}

func (s *Server) maintenanceStatus(c *gin.Context) {
	if s.deps.Jobs == nil {
		success(c, []interface{}{})
		return
	}
	success(c, s.deps.Jobs.Status())
}
