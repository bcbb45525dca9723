package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/singleflight"

	"github.com/inference-sim/sir-sim/sim"
	"github.com/inference-sim/sir-sim/sim/batch"
)

var (
	serveAddr       string        // Listen address
	serveMaxRecords int           // Upper bound on num_runs * num_agents * num_steps per request
	serveTimeout    time.Duration // Per-simulation time limit
	serveLogLevel   string        // Log verbosity level
)

// SimulationRequest is the body of POST /v1/simulations. Omitted config
// fields take their defaults.
type SimulationRequest struct {
	sim.SimConfig
	IncludeLogs bool `json:"include_logs"` // return agent_states and infections
}

// SimulationHandler serves simulations over HTTP.
type SimulationHandler struct {
	maxRecords int
	timeout    time.Duration
	opts       []batch.Option

	group singleflight.Group // keyed by the JSON config; concurrent identical requests share a batch
}

// NewSimulationHandler creates a handler. opts apply to every batch.
func NewSimulationHandler(maxRecords int, timeout time.Duration, opts ...batch.Option) *SimulationHandler {
	return &SimulationHandler{maxRecords: maxRecords, timeout: timeout, opts: opts}
}

// RegisterRoutes registers the handler's routes on e.
func (h *SimulationHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	e.POST("/v1/simulations", h.CreateSimulation)
}

// Health reports liveness.
// GET /healthz
func (h *SimulationHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// CreateSimulation runs a batch and returns its result.
// POST /v1/simulations
func (h *SimulationHandler) CreateSimulation(c echo.Context) error {
	req := SimulationRequest{SimConfig: sim.DefaultSimConfig()}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	cfg := req.SimConfig
	if err := cfg.Validate(); err != nil {
		var cfgErr *sim.ConfigurationError
		if errors.As(err, &cfgErr) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error(), "field": cfgErr.Field})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if h.maxRecords > 0 && int64(cfg.NumRuns)*int64(cfg.NumAgents)*int64(cfg.NumSteps) > int64(h.maxRecords) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "simulation too large: num_runs * num_agents * num_steps exceeds the server limit"})
	}

	key, err := json.Marshal(cfg)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to encode config"})
	}
	v, err, shared := h.group.Do(string(key), func() (any, error) {
		// The batch outlives the first caller's request; only h.timeout stops it.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), h.timeout)
		defer cancel()
		runner, err := batch.NewRunner(cfg, h.opts...)
		if err != nil {
			return nil, err
		}
		return runner.Run(ctx)
	})
	if err != nil {
		logrus.WithError(err).Error("serve: simulation failed")
		if errors.Is(err, context.DeadlineExceeded) {
			return c.JSON(http.StatusGatewayTimeout, map[string]string{"error": "simulation timed out"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "simulation failed"})
	}
	logrus.WithFields(logrus.Fields{"shared": shared, "runs": cfg.NumRuns}).Debug("serve: simulation complete")

	res := *v.(*batch.Result)
	if !req.IncludeLogs {
		res.AgentStates = nil
		res.Infections = nil
	}
	return c.JSON(http.StatusOK, res)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve simulations over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel(serveLogLevel)

		mp, reader := newMeterProvider()
		var opts []batch.Option
		if mp != nil {
			opts = append(opts, batch.WithMeterProvider(mp))
		}

		e := echo.New()
		e.HideBanner = true
		e.Use(middleware.Logger())
		e.Use(middleware.Recover())
		NewSimulationHandler(serveMaxRecords, serveTimeout, opts...).RegisterRoutes(e)

		go func() {
			if err := e.Start(serveAddr); err != nil && err != http.ErrServerClosed {
				logrus.Fatalf("Failed to start server: %v", err)
			}
		}()
		logrus.Infof("Serving simulations on %s", serveAddr)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logrus.Errorf("Failed to shut down server gracefully: %v", err)
		}
		reportMetrics(shutdownCtx, reader)
		if mp != nil {
			_ = mp.Shutdown(shutdownCtx)
		}
		logrus.Info("Server stopped")
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().IntVar(&serveMaxRecords, "max-records", 50_000_000, "Maximum num_runs * num_agents * num_steps per request (0 = unlimited)")
	serveCmd.Flags().DurationVar(&serveTimeout, "timeout", 5*time.Minute, "Time limit per simulation")
	serveCmd.Flags().StringVar(&serveLogLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	rootCmd.AddCommand(serveCmd)
}
