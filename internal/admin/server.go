package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/bridgectl/internal/auth"
	"github.com/danmuck/bridgectl/internal/bridge"
	"github.com/danmuck/bridgectl/internal/dispatch"
	"github.com/danmuck/bridgectl/internal/handshake"
	"github.com/danmuck/bridgectl/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const version = "0.1.0"

// StatusSource publishes handshake progress.
type StatusSource interface {
	Status() handshake.Status
}

// WindowInfo describes the mapped window for /status.
type WindowInfo struct {
	Device       string `json:"device"`
	Base         string `json:"base"`
	Span         string `json:"span"`
	Simulated    bool   `json:"simulated"`
	StatusOutput bool   `json:"status_register"`
}

// CommandRaiser asserts a command from the host side of the window.
type CommandRaiser interface {
	Raise(code, addr, data uint32) error
}

// Options configures the admin server. An empty Token leaves every route
// open; otherwise every route but /health requires it as a bearer token.
// Host is only set in simulate mode and enables POST /simulate/command.
type Options struct {
	Addr        string
	CorsOrigins []string
	Token       string
	Window      WindowInfo
	Host        CommandRaiser
}

type Server struct {
	Addr     string
	Appeared time.Time

	source StatusSource
	host   CommandRaiser
	window WindowInfo
	token  string
	router *gin.Engine
	http   *http.Server
	logger zerolog.Logger
}

func New(opts Options, source StatusSource, logger zerolog.Logger) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	logger = logger.With().Str("component", "admin").Logger()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.AdminRequests(logger, func() string {
		return source.Status().State.String()
	}))
	if origins := normalizeOrigins(opts.CorsOrigins); len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{"GET", "POST"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		Addr:     opts.Addr,
		Appeared: time.Now(),
		source:   source,
		host:     opts.Host,
		window:   opts.Window,
		token:    strings.TrimSpace(opts.Token),
		router:   r,
		logger:   logger,
	}
	s.registerRoutes()
	s.http = &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve blocks until Shutdown is called or the listener fails.
func (s *Server) Serve() error {
	s.logger.Info().Str("addr", s.Addr).Msg("admin server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": "bridgectl",
			"version": version,
		})
	})

	guarded := s.router.Group("/")
	if s.token != "" {
		guarded.Use(auth.Middleware(auth.StaticToken{Token: s.token}))
	}

	guarded.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, statusView(s.source.Status(), s.window))
	})

	guarded.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if s.host != nil {
		guarded.POST("/simulate/command", s.raiseCommand)
	}
}

type raiseRequest struct {
	// Command is a kind name ("sprite") or a raw code ("0x20").
	Command string `json:"command" binding:"required"`
	Addr    string `json:"addr"`
	Data    string `json:"data"`
}

func (s *Server) raiseCommand(c *gin.Context) {
	var req raiseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd, err := parseRaise(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.host.Raise(cmd.Code, cmd.Addr, cmd.Data); err != nil {
		if errors.Is(err, bridge.ErrHostBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.logger.Info().Stringer("command", cmd).Msg("simulated host raised command")
	c.JSON(http.StatusAccepted, gin.H{
		"kind": cmd.Kind().String(),
		"code": fmt.Sprintf("0x%02X", cmd.Code),
		"addr": fmt.Sprintf("0x%08X", cmd.Addr),
		"data": fmt.Sprintf("0x%08X", cmd.Data),
	})
}

func parseRaise(req raiseRequest) (dispatch.Command, error) {
	var cmd dispatch.Command
	if kind, err := dispatch.ParseKind(req.Command); err == nil {
		cmd.Code = uint32(kind)
	} else {
		code, perr := parseWord(req.Command)
		if perr != nil {
			return cmd, fmt.Errorf("command: %w", err)
		}
		cmd.Code = code
	}
	var err error
	if cmd.Addr, err = parseWord(req.Addr); err != nil {
		return cmd, fmt.Errorf("addr: %w", err)
	}
	if cmd.Data, err = parseWord(req.Data); err != nil {
		return cmd, fmt.Errorf("data: %w", err)
	}
	return cmd, nil
}

func parseWord(raw string) (uint32, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

type lastView struct {
	Kind     string    `json:"kind"`
	Code     string    `json:"code"`
	Addr     string    `json:"addr"`
	Data     string    `json:"data"`
	OK       bool      `json:"ok"`
	Message  string    `json:"message"`
	Invoked  bool      `json:"invoked"`
	ExitCode int       `json:"exit_code"`
	Duration string    `json:"duration"`
	At       time.Time `json:"at"`
}

type statusResponse struct {
	State   string     `json:"state"`
	Cycles  uint64     `json:"cycles"`
	Stalled bool       `json:"stalled"`
	Window  WindowInfo `json:"window"`
	Last    *lastView  `json:"last,omitempty"`
}

func statusView(st handshake.Status, window WindowInfo) statusResponse {
	out := statusResponse{
		State:   st.State.String(),
		Cycles:  st.Cycles,
		Stalled: st.Stalled,
		Window:  window,
	}
	if st.HasLast {
		cmd, res := st.LastCommand, st.LastResult
		out.Last = &lastView{
			Kind:     cmd.Kind().String(),
			Code:     fmt.Sprintf("0x%02X", cmd.Code),
			Addr:     fmt.Sprintf("0x%08X", cmd.Addr),
			Data:     fmt.Sprintf("0x%08X", cmd.Data),
			OK:       res.OK,
			Message:  res.Message,
			Invoked:  res.Invoked,
			ExitCode: res.ExitCode,
			Duration: res.Duration.String(),
			At:       st.LastAt,
		}
	}
	return out
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
