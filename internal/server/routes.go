package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/qinweixian/yunmi-water-heater/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/api/state", s.StateHandler)
	e.POST("/api/refresh", s.RefreshHandler)
	e.GET("/api/journal", s.JournalHandler)
	if s.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) StateHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetWaterHeaterStateRequest{}, 5*time.Second).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "water heater actor unavailable")
	}
	response, ok := res.(domain.GetWaterHeaterStateResponse)
	if !ok || response.HasResponseError() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "water heater actor unavailable")
	}
	return c.JSON(http.StatusOK, response.View)
}

// RefreshHandler reads the device now and returns the resulting view. A
// failed read still returns the view, which then reports ready=false.
func (s *Server) RefreshHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.RefreshRequest{}, 15*time.Second).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusGatewayTimeout, "refresh timed out")
	}
	response, ok := res.(domain.RefreshResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected refresh response")
	}
	if response.HasResponseError() {
		return c.JSON(http.StatusBadGateway, response.View)
	}
	return c.JSON(http.StatusOK, response.View)
}

func (s *Server) JournalHandler(c echo.Context) error {
	if s.journal == nil {
		return echo.NewHTTPError(http.StatusNotFound, "command journal disabled")
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	entries, err := s.journal.List(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entries)
}
