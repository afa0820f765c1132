package telemetry

import (
	"context"
	"fmt"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OpsServer exposes health and metrics endpoints while a run or
// scheduler loop is active. It is not the product API, only an
// operator surface.
type OpsServer struct {
	echo   *echo.Echo
	addr   string
	logger *log.Logger
}

// NewOpsServer wires /healthz and /metrics over the given registry.
func NewOpsServer(port int, registry *prometheus.Registry) *OpsServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return &OpsServer{
		echo:   e,
		addr:   fmt.Sprintf(":%d", port),
		logger: log.New(log.Writer(), "[OPS] ", log.LstdFlags),
	}
}

// Start serves in the background until Shutdown.
func (s *OpsServer) Start() {
	go func() {
		if err := s.echo.Start(s.addr); err != nil {
			s.logger.Printf("ops server stopped: %v", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *OpsServer) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
