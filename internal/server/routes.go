package server

import (
	"errors"
	"net/http"
	"time"

	"overkiz2mqtt/internal/core/domain"
	"overkiz2mqtt/internal/core/service"
	"overkiz2mqtt/pkg/overkiz"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Futures on the master. Provisioning and unloading wait on the vendor cloud
// and the broker respectively, so their calls get the longer timeout.
const (
	actorCallTimeout = 10 * time.Second
	longCallTimeout  = 40 * time.Second
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/version", s.VersionHandler)

	e.GET("/entries", s.ListEntriesHandler)
	e.POST("/entries", s.ProvisionEntryHandler)
	e.PUT("/entries/:id", s.ReauthEntryHandler)
	e.POST("/entries/:id/unload", s.UnloadEntryHandler)
	e.POST("/entries/:id/reload", s.ReloadEntryHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, actorCallTimeout).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) VersionHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"version": versioninfo.Short()})
}

func (s *Server) ListEntriesHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ListEntriesRequest{}, actorCallTimeout).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	resp, ok := res.(domain.ListEntriesResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusBadGateway, "unexpected master response")
	}
	return c.JSON(http.StatusOK, resp.Entries)
}

type provisionRequest struct {
	Title    string `json:"title"`
	APIType  string `json:"api_type"`
	Host     string `json:"host"`
	Username string `json:"username"`
	Password string `json:"password"`
	Server   string `json:"server"`
}

func (s *Server) ProvisionEntryHandler(c echo.Context) error {
	var req provisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ProvisionEntryRequest{
		Title:    req.Title,
		APIType:  overkiz.APIType(req.APIType),
		Host:     req.Host,
		Username: req.Username,
		Password: req.Password,
		Server:   req.Server,
	}, longCallTimeout).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	resp, ok := res.(domain.ProvisionEntryResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusBadGateway, "unexpected master response")
	}
	if resp.HasResponseError() {
		return echo.NewHTTPError(errorStatus(resp.GetResponseError()), resp.GetResponseError().Error())
	}
	return c.JSON(http.StatusCreated, resp.Entry)
}

type reauthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) ReauthEntryHandler(c echo.Context) error {
	var req reauthRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ReauthEntryRequest{
		EntryID:  c.Param("id"),
		Username: req.Username,
		Password: req.Password,
	}, longCallTimeout).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	resp, ok := res.(domain.ReauthEntryResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusBadGateway, "unexpected master response")
	}
	if resp.HasResponseError() {
		return echo.NewHTTPError(errorStatus(resp.GetResponseError()), resp.GetResponseError().Error())
	}
	return c.JSON(http.StatusOK, resp.Entry)
}

func (s *Server) UnloadEntryHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.UnloadEntryRequest{
		EntryID: c.Param("id"),
	}, longCallTimeout).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	resp, ok := res.(domain.UnloadEntryResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusBadGateway, "unexpected master response")
	}
	if resp.HasResponseError() {
		return echo.NewHTTPError(errorStatus(resp.GetResponseError()), resp.GetResponseError().Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"unloaded": resp.Unloaded})
}

func (s *Server) ReloadEntryHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ReloadEntryRequest{
		EntryID: c.Param("id"),
	}, longCallTimeout).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	resp, ok := res.(domain.ReloadEntryResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusBadGateway, "unexpected master response")
	}
	if resp.HasResponseError() {
		return echo.NewHTTPError(errorStatus(resp.GetResponseError()), resp.GetResponseError().Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// errorStatus maps provisioning and lifecycle errors onto HTTP statuses.
// Anything unrecognized counts as an upstream failure.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateEntry),
		errors.Is(err, service.ErrAccountMismatch):
		return http.StatusConflict
	case errors.Is(err, overkiz.ErrBadCredentials),
		errors.Is(err, overkiz.ErrNotSuchToken),
		errors.Is(err, overkiz.ErrUnknownUser):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrUnknownServer),
		errors.Is(err, service.ErrNoLocalAPI),
		errors.Is(err, service.ErrDeveloperModeDisabled),
		errors.Is(err, service.ErrGatewayNotFound):
		return http.StatusBadRequest
	case errors.Is(err, overkiz.ErrTooManyRequests),
		errors.Is(err, overkiz.ErrTooManyAttemptsBanned):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}
