package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/cosanlab/medoc"
)

// shutdownTimeout bounds the graceful shutdown after context cancellation.
const shutdownTimeout = 5 * time.Second

// Controller is the subset of the device client the bridge needs.
//
// *medoc.Pathway satisfies it; tests substitute a fake.
type Controller interface {
	Status(ctx context.Context) (*medoc.Response, error)
	Send(ctx context.Context, cmd medoc.Command) (*medoc.Response, error)
	SelectProgram(ctx context.Context, protocol int) (*medoc.Response, error)
	PollForChange(ctx context.Context, attribute, target string, opts ...medoc.PollOption) (medoc.PollResult, error)
}

// commandNames maps URL command names to device command codes. TEST_PROGRAM
// is deliberately absent; it takes an argument and has its own route.
var commandNames = map[string]medoc.Command{
	"status":  medoc.CmdStatus,
	"start":   medoc.CmdStart,
	"pause":   medoc.CmdPause,
	"trigger": medoc.CmdTrigger,
	"stop":    medoc.CmdStop,
	"abort":   medoc.CmdAbort,
	"yes":     medoc.CmdYes,
	"no":      medoc.CmdNo,
}

// Server exposes a Pathway device over HTTP.
//
// The device speaks one command per TCP connection and has no notion of
// concurrent clients, so the bridge is the single process talking to it;
// everything else talks JSON to the bridge:
//   - GET  /healthz               liveness, no device traffic
//   - GET  /api/status            current device state
//   - POST /api/commands/:name    fire a simple command (start, stop, ...)
//   - POST /api/program           select a test program
//   - POST /api/wait              block until an attribute reaches a value
type Server struct {
	dev        Controller
	port       int
	httpServer *http.Server
	logger     *slog.Logger
	echo       *echo.Echo
	done       chan struct{}
}

// NewServer creates the bridge around an existing device client.
//
// The server is not started until [Server.Start] is called.
func NewServer(dev Controller, port int, logger *slog.Logger) *Server {
	s := &Server{
		dev:    dev,
		port:   port,
		logger: logger,
		done:   make(chan struct{}),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURI:       true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("http request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
			)
			return nil
		},
	}))

	e.GET("/healthz", s.handleHealthz)
	e.GET("/api/status", s.handleStatus)
	e.POST("/api/commands/:name", s.handleCommand)
	e.POST("/api/program", s.handleProgram)
	e.POST("/api/wait", s.handleWait)

	s.echo = e
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler: s.echo,
		// BaseContext derives all request contexts from the server context,
		// so a long-running /api/wait unblocks on shutdown.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		defer close(s.done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// Done is closed once the server has finished its graceful shutdown.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// statusPayload is the JSON shape of a device response.
type statusPayload struct {
	Command      string `json:"command"`
	PathwayState string `json:"pathway_state"`
	TestState    string `json:"test_state"`
	Result       string `json:"result"`
	TestTime     string `json:"test_time"`
	Timestamp    string `json:"timestamp"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func toPayload(resp *medoc.Response) statusPayload {
	return statusPayload{
		Command:      resp.Command.String(),
		PathwayState: resp.SystemState.String(),
		TestState:    resp.TestState.String(),
		Result:       resp.Result.String(),
		TestTime:     resp.TestTimeString(),
		Timestamp:    resp.Timestamp.UTC().Format(time.RFC3339),
		ErrorMessage: resp.ErrorMessage,
	}
}

// errorPayload is the JSON shape of a failed request.
type errorPayload struct {
	Error string `json:"error"`
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	resp, err := s.dev.Status(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusBadGateway, errorPayload{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, toPayload(resp))
}

func (s *Server) handleCommand(c echo.Context) error {
	name := strings.ToLower(c.Param("name"))
	cmd, ok := commandNames[name]
	if !ok {
		return c.JSON(http.StatusNotFound, errorPayload{Error: fmt.Sprintf("unknown command %q", name)})
	}

	resp, err := s.dev.Send(c.Request().Context(), cmd)
	if err != nil {
		return c.JSON(http.StatusBadGateway, errorPayload{Error: err.Error()})
	}
	if !resp.Result.OK() {
		// the device understood us but refused; surface its state anyway
		return c.JSON(http.StatusConflict, toPayload(resp))
	}
	return c.JSON(http.StatusOK, toPayload(resp))
}

// programRequest selects a test program by number.
type programRequest struct {
	Program int `json:"program"`
}

func (s *Server) handleProgram(c echo.Context) error {
	var req programRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorPayload{Error: "invalid request body"})
	}
	if req.Program < 1 {
		return c.JSON(http.StatusBadRequest, errorPayload{Error: "program must be a positive integer"})
	}

	resp, err := s.dev.SelectProgram(c.Request().Context(), req.Program)
	if err != nil {
		return c.JSON(http.StatusBadGateway, errorPayload{Error: err.Error()})
	}
	if !resp.Result.OK() {
		return c.JSON(http.StatusConflict, toPayload(resp))
	}
	return c.JSON(http.StatusOK, toPayload(resp))
}

// waitRequest blocks until the named attribute reaches the target value.
// Durations are strings like "500ms" or "2m".
type waitRequest struct {
	Attribute   string `json:"attribute"`
	Target      string `json:"target"`
	Interval    string `json:"interval,omitempty"`
	MaxAttempts int    `json:"max_attempts,omitempty"`
	MaxDuration string `json:"max_duration,omitempty"`
}

// waitResponse reports the outcome of a wait.
type waitResponse struct {
	Matched   bool   `json:"matched"`
	Attempts  int    `json:"attempts"`
	LastValue string `json:"last_value"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

func (s *Server) handleWait(c echo.Context) error {
	var req waitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorPayload{Error: "invalid request body"})
	}
	if req.Attribute == "" {
		req.Attribute = medoc.AttrTestState
	}
	if req.Target == "" {
		return c.JSON(http.StatusBadRequest, errorPayload{Error: "target is required"})
	}

	opts, err := waitOptions(req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorPayload{Error: err.Error()})
	}

	res, err := s.dev.PollForChange(c.Request().Context(), req.Attribute, req.Target, opts...)
	if err != nil {
		return c.JSON(http.StatusBadGateway, errorPayload{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, waitResponse{
		Matched:   res.Matched,
		Attempts:  res.Attempts,
		LastValue: res.LastValue,
		ElapsedMS: res.Elapsed.Milliseconds(),
	})
}

func waitOptions(req waitRequest) ([]medoc.PollOption, error) {
	var opts []medoc.PollOption

	if req.Interval != "" {
		d, err := time.ParseDuration(req.Interval)
		if err != nil {
			return nil, fmt.Errorf("invalid interval %q: %w", req.Interval, err)
		}
		opts = append(opts, medoc.WithPollInterval(d))
	}
	if req.MaxAttempts > 0 {
		opts = append(opts, medoc.WithMaxAttempts(req.MaxAttempts))
	}
	if req.MaxDuration != "" {
		d, err := time.ParseDuration(req.MaxDuration)
		if err != nil {
			return nil, fmt.Errorf("invalid max_duration %q: %w", req.MaxDuration, err)
		}
		opts = append(opts, medoc.WithMaxDuration(d))
	}

	return opts, nil
}
