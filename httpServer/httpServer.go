package httpServer

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"timepilot/config"
	"timepilot/internal/auth"
	"timepilot/internal/metrics"
	"timepilot/internal/midiout"
	"timepilot/internal/scheduler"
	"timepilot/internal/settings"
	"timepilot/pkg/models"
)

// MIDIOutputs lists and selects MIDI outputs
type MIDIOutputs interface {
	Outputs() ([]string, error)
	Select(name string) error
	Selected() (string, bool)
}

// Server wraps the HTTP server with dependencies
type Server struct {
	router      *gin.Engine
	scheduler   *scheduler.Scheduler
	settings    *settings.Store
	midi        MIDIOutputs
	authManager *auth.Manager
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
	log         *logrus.Entry
	sseBuffer   int
}

// New creates a new HTTP server. m and gatherer may be nil to disable metrics.
func New(sched *scheduler.Scheduler, store *settings.Store, midi MIDIOutputs, authManager *auth.Manager, m *metrics.Metrics, gatherer prometheus.Gatherer, sseBuffer int, log *logrus.Entry) *Server {
	s := &Server{
		scheduler:   sched,
		settings:    store,
		midi:        midi,
		authManager: authManager,
		metrics:     m,
		gatherer:    gatherer,
		log:         log.WithField("component", "http"),
		sseBuffer:   sseBuffer,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	if s.metrics != nil {
		router.Use(s.metricsMiddleware())
	}

	protected := s.authManager.Middleware()

	api := router.Group("/api")
	{
		api.GET("/ping", s.handlePing)

		api.GET("/v1/transport", s.handleTransportStatus)
		api.POST("/v1/transport/play", protected, s.handlePlay)
		api.POST("/v1/transport/stop", protected, s.handleStop)

		api.GET("/v1/timecode", s.handleTimecode)
		api.GET("/v1/timecode/stream", s.handleTimecodeStream)

		api.GET("/v1/settings", s.handleGetSettings)
		api.PUT("/v1/settings", protected, s.handlePutSettings)
		api.DELETE("/v1/settings", protected, s.handleResetSettings)

		api.GET("/v1/midi/outputs", s.handleListMIDIOutputs)
		api.PUT("/v1/midi/output", protected, s.handleSelectMIDIOutput)
	}

	if s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	s.router = router
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Handler implementations

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
		"time":    time.Now().Unix(),
	})
}

func (s *Server) handleTransportStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.scheduler.Status())
}

func (s *Server) handlePlay(c *gin.Context) {
	var req models.PlayRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	current := s.settings.Current()
	if req.Offset != nil {
		current.Offset = *req.Offset
	}
	if _, err := current.Validate(nil); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := s.scheduler.Start(current); err != nil {
		s.log.WithError(err).Error("failed to start session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, s.scheduler.Status())
}

func (s *Server) handleStop(c *gin.Context) {
	if err := s.scheduler.Stop(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, s.scheduler.Status())
}

func (s *Server) handleTimecode(c *gin.Context) {
	c.JSON(http.StatusOK, s.timecodeResponse(s.scheduler.Display().Current()))
}

func (s *Server) handleTimecodeStream(c *gin.Context) {
	updates, cleanup := s.scheduler.Display().Subscribe(s.sseBuffer)
	defer cleanup()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case tc, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("timecode", s.timecodeResponse(tc))
			return true
		}
	})
}

func (s *Server) handleGetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.settings.Current())
}

func (s *Server) handlePutSettings(c *gin.Context) {
	var req config.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := req.Validate(nil); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := s.settings.Save(c.Request.Context(), req)
	if err != nil {
		s.log.WithError(err).Error("failed to save settings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if s.midi != nil {
		if err := s.midi.Select(saved.MIDIOutput); err != nil {
			s.log.WithError(err).WithField("output", saved.MIDIOutput).Warn("saved MIDI output is not available")
		}
	}

	c.JSON(http.StatusOK, saved)
}

func (s *Server) handleResetSettings(c *gin.Context) {
	defaults, err := s.settings.Reset(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, defaults)
}

func (s *Server) handleListMIDIOutputs(c *gin.Context) {
	resp := models.MIDIOutputListResponse{Outputs: []string{}}
	if s.midi != nil {
		outputs, err := s.midi.Outputs()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp.Outputs = outputs
		resp.Selected, _ = s.midi.Selected()
	}
	resp.Total = len(resp.Outputs)

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSelectMIDIOutput(c *gin.Context) {
	var req models.MIDIOutputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.midi == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "MIDI is not available"})
		return
	}

	if err := s.midi.Select(req.Name); err != nil {
		if errors.Is(err, midiout.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	current := s.settings.Current()
	current.MIDIOutput = req.Name
	if _, err := s.settings.Save(c.Request.Context(), current); err != nil {
		s.log.WithError(err).Warn("failed to persist MIDI output")
	}

	selected, _ := s.midi.Selected()
	c.JSON(http.StatusOK, gin.H{
		"message":  "MIDI output updated",
		"selected": selected,
	})
}

// Helper functions

func (s *Server) timecodeResponse(tc models.Timecode) models.TimecodeResponse {
	state := models.SessionStateIdle
	if s.scheduler.Running() {
		state = models.SessionStateRunning
	}
	return models.TimecodeResponse{
		Timecode: tc.String(),
		Value:    tc,
		State:    string(state),
	}
}

// requestLogger logs each request through logrus
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := s.log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).Round(time.Microsecond),
			"client":   c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request")
	}
}

// metricsMiddleware records request counts and latency by route
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		s.metrics.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start).Seconds())
	}
}
