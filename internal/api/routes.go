package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/danuharapan/senandika/server/adapters/registry"
	"github.com/danuharapan/senandika/server/domain/entities"
	"github.com/danuharapan/senandika/server/domain/repositories"
	"github.com/danuharapan/senandika/server/internal/auth"
	"github.com/danuharapan/senandika/server/internal/websocket"
	"github.com/danuharapan/senandika/server/usecase"
)

// Services bundles everything the HTTP surface exposes.
type Services struct {
	Registry repositories.DeviceRegistry
	Pairing  *usecase.PairingService
	Sessions *usecase.SessionService
	Memories *usecase.MemoryService
	Profiles *usecase.ProfileService
	Settings *usecase.SettingsService
}

type handlers struct {
	services Services
	hub      *websocket.Hub
	logger   *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, services Services, hub *websocket.Hub, logger *zap.Logger) {
	h := &handlers{services: services, hub: hub, logger: logger}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "senandika-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Device registry
	v1.GET("/devices", h.listDevices)
	v1.GET("/devices/:id", h.getDevice)
	v1.PUT("/devices/:id/name", h.renameDevice)
	v1.PUT("/devices/:id/volume", h.setDeviceVolume)
	v1.DELETE("/devices/:id", h.unbindDevice)

	// Pairing flow
	v1.POST("/pairing", h.startPairing)
	v1.GET("/pairing", h.pairingStatus)
	v1.POST("/pairing/permissions", h.confirmPermissions)
	v1.POST("/pairing/search", h.startSearch)
	v1.POST("/pairing/select", h.selectCandidate)
	v1.POST("/pairing/connect", h.connectDevice)
	v1.POST("/pairing/name", h.provisionDevice)
	v1.POST("/pairing/back", h.pairingBack)
	v1.DELETE("/pairing", h.cancelPairing)

	// Persona and chat
	v1.GET("/persona/catalog", h.personaCatalog)
	v1.GET("/devices/:id/persona", h.getPersona)
	v1.PUT("/devices/:id/persona/role", h.selectRole)
	v1.PUT("/devices/:id/persona/model", h.selectModel)
	v1.PUT("/devices/:id/persona/voice", h.selectVoice)
	v1.POST("/devices/:id/chat", h.sendMessage)
	v1.GET("/devices/:id/chat", h.getTranscript)

	// Memories
	v1.GET("/devices/:id/memories", h.listMemories)
	v1.POST("/devices/:id/memories", h.addMemory)
	v1.PUT("/devices/:id/memories/:memoryId", h.editMemory)
	v1.DELETE("/devices/:id/memories/:memoryId", h.removeMemory)

	// Profile
	v1.GET("/devices/:id/profile", h.getProfile)
	v1.PUT("/devices/:id/profile", h.saveProfile)

	// Settings and users
	v1.GET("/settings/theme", h.getTheme)
	v1.PUT("/settings/theme", h.setTheme)
	v1.POST("/users/login", h.login)
	v1.POST("/users/logout", h.logout)
	v1.GET("/users/me", h.currentUser)

	// WebSocket endpoint with JWT validation
	e.GET("/ws", h.websocketWithAuth)
}

// fail translates service errors into HTTP responses.
func (h *handlers) fail(c echo.Context, err error) error {
	var flowErr *usecase.FlowError
	switch {
	case errors.Is(err, registry.ErrDeviceNotFound),
		errors.Is(err, usecase.ErrMemoryNotFound),
		errors.Is(err, usecase.ErrNotLoggedIn),
		errors.Is(err, usecase.ErrNoPairingSession):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
	case errors.Is(err, usecase.ErrPairingInProgress),
		errors.Is(err, usecase.ErrBusyStage),
		errors.As(err, &flowErr):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "conflict", Message: err.Error()})
	default:
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
	}
}

func (h *handlers) bind(c echo.Context, req interface{}) bool {
	if err := c.Bind(req); err != nil {
		h.logger.Warn("Failed to bind request", zap.Error(err))
		return false
	}
	return true
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: message})
}

func (h *handlers) listDevices(c echo.Context) error {
	return c.JSON(http.StatusOK, h.services.Registry.List())
}

func (h *handlers) getDevice(c echo.Context) error {
	device, err := h.services.Registry.Get(c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, device)
}

func (h *handlers) renameDevice(c echo.Context) error {
	var req RenameDeviceRequest
	if !h.bind(c, &req) {
		return badRequest(c, "invalid request format")
	}
	if err := h.services.Registry.Rename(c.Param("id"), req.Name); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) setDeviceVolume(c echo.Context) error {
	var req VolumeRequest
	if !h.bind(c, &req) {
		return badRequest(c, "invalid request format")
	}
	if err := h.services.Registry.SetVolume(c.Param("id"), req.Volume); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) unbindDevice(c echo.Context) error {
	deviceID := c.Param("id")
	if err := h.services.Registry.Remove(deviceID); err != nil {
		return h.fail(c, err)
	}
	// Discard the transient conversation; persisted memories and profile
	// stay keyed by the old id.
	h.services.Sessions.Close(deviceID)
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) startPairing(c echo.Context) error {
	var req StartPairingRequest
	if !h.bind(c, &req) {
		return badRequest(c, "invalid request format")
	}
	session, err := h.services.Pairing.Start(req.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, session)
}

func (h *handlers) pairingStatus(c echo.Context) error {
	session, err := h.services.Pairing.Snapshot()
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

func (h *handlers) confirmPermissions(c echo.Context) error {
	if err := h.services.Pairing.ConfirmPermissions(); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) startSearch(c echo.Context) error {
	if err := h.services.Pairing.StartSearch(); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *handlers) selectCandidate(c echo.Context) error {
	var req SelectCandidateRequest
	if !h.bind(c, &req) {
		return badRequest(c, "invalid request format")
	}
	if err := h.services.Pairing.SelectDevice(req.CandidateID); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) connectDevice(c echo.Context) error {
	var req ConnectRequest
	if !h.bind(c, &req) {
		return badRequest(c, "invalid request format")
	}
	creds := entities.WifiCredentials{SSID: req.SSID, PSK: req.PSK}
	if err := h.services.Pairing.Connect(creds); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *handlers) provisionDevice(c echo.Context) error {
	var req ProvisionRequest
	if !h.bind(c, &req) {
		return badRequest(c, "invalid request format")
	}
	device, err := h.services.Pairing.Provision(req.Name)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, device)
}

func (h *handlers) pairingBack(c echo.Context) error {
	if err := h.services.Pairing.Back(); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) cancelPairing(c echo.Context) error {
	if err := h.services.Pairing.Cancel(); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) personaCatalog(c echo.Context) error {
	return c.JSON(http.StatusOK, PersonaCatalogResponse{
		Roles:  entities.Roles,
		Models: entities.Models,
		Voices: entities.Voices,
	})
}

func (h *handlers) getPersona(c echo.Context) error {
	binding, err := h.services.Sessions.Persona(c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, binding)
}

func (h *handlers) selectRole(c echo.Context) error {
	var req SelectRoleRequest
	if !h.bind(c, &req) {
		return badRequest(c, "invalid request format")
	}
	if err := h.services.Sessions.SelectRole(c.Param("id"), req.RoleID); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) selectModel(c echo.Context) error {
	var req SelectModelRequest
	if !h.bind(c, &req) {
		return badRequest(c, "invalid request format")
	}
	if err := h.services.Sessions.SelectModel(c.Param("id"), req.ModelID); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) selectVoice(c echo.Context) error {
	var req SelectVoiceRequest
	if !h.bind(c, &req) {
		return badRequest(c, "invalid request format")
	}
	if err := h.services.Sessions.SelectVoice(c.Param("id"), req.VoiceID); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) sendMessage(c echo.Context) error {
	var req ChatRequest
	if !h.bind(c, &req) {
		return badRequest(c, "invalid request format")
	}
	turn, err := h.services.Sessions.SendMessage(c.Param("id"), req.Text)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusAccepted, turn)
}

func (h *handlers) getTranscript(c echo.Context) error {
	turns, err := h.services.Sessions.Transcript(c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, turns)
}

func (h *handlers) listMemories(c echo.Context) error {
	items, err := h.services.Memories.List(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *handlers) addMemory(c echo.Context) error {
	var req MemoryRequest
	if !h.bind(c, &req) {
		return badRequest(c, "invalid request format")
	}
	item, err := h.services.Memories.Add(c.Request().Context(), c.Param("id"), req.Content, req.Category)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *handlers) editMemory(c echo.Context) error {
	var req MemoryRequest
	if !h.bind(c, &req) {
		return badRequest(c, "invalid request format")
	}
	err := h.services.Memories.Edit(c.Request().Context(), c.Param("id"), c.Param("memoryId"), req.Content, req.Category)
	if err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) removeMemory(c echo.Context) error {
	err := h.services.Memories.Remove(c.Request().Context(), c.Param("id"), c.Param("memoryId"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) getProfile(c echo.Context) error {
	info, err := h.services.Profiles.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

func (h *handlers) saveProfile(c echo.Context) error {
	var info entities.PersonalInfo
	if !h.bind(c, &info) {
		return badRequest(c, "invalid request format")
	}
	if err := h.services.Profiles.Save(c.Request().Context(), c.Param("id"), info); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) getTheme(c echo.Context) error {
	theme := h.services.Settings.Theme(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]entities.ThemeMode{"theme": theme})
}

func (h *handlers) setTheme(c echo.Context) error {
	var req ThemeRequest
	if !h.bind(c, &req) {
		return badRequest(c, "invalid request format")
	}
	if err := h.services.Settings.SetTheme(c.Request().Context(), req.Theme); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) login(c echo.Context) error {
	var req LoginRequest
	if !h.bind(c, &req) {
		return badRequest(c, "invalid request format")
	}

	user, err := h.services.Settings.Login(c.Request().Context(), entities.User{
		Email:  req.Email,
		Name:   req.Name,
		Phone:  req.Phone,
		Avatar: req.Avatar,
	})
	if err != nil {
		return h.fail(c, err)
	}

	token, err := auth.GenerateUserToken(user.ID, user.Email)
	if err != nil {
		h.logger.Error("Failed to generate user token",
			zap.String("user_id", user.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	h.logger.Info("User logged in", zap.String("user_id", user.ID))
	return c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
		User:      user,
	})
}

func (h *handlers) logout(c echo.Context) error {
	if err := h.services.Settings.Logout(c.Request().Context()); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) currentUser(c echo.Context) error {
	user, err := h.services.Settings.CurrentUser(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func (h *handlers) websocketWithAuth(c echo.Context) error {
	// Extract JWT token from Authorization header only
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader != "" && len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	}

	if token == "" {
		h.logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in Authorization header",
		})
	}

	// Validate JWT token
	claims, err := auth.ValidateToken(token)
	if err != nil {
		h.logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	h.logger.Info("WebSocket connection authenticated",
		zap.String("user_id", claims.UserID))

	return websocket.HandleWebSocket(h.hub, c, claims.UserID, h.logger)
}
