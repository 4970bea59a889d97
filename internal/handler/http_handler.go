package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sasachat/sasachat/internal/domain"
	"github.com/sasachat/sasachat/internal/service"
	"github.com/sasachat/sasachat/internal/store"
	"github.com/sasachat/sasachat/pkg/log"
	"github.com/sasachat/sasachat/pkg/middleware"
	"github.com/sasachat/sasachat/pkg/response"
)

// HTTPHandler serves the room and history REST API.
type HTTPHandler struct {
	roomService    service.RoomService
	historyService service.HistoryService
	authMiddleware *middleware.AuthMiddleware
}

func NewHTTPHandler(rooms service.RoomService, history service.HistoryService, auth *middleware.AuthMiddleware) *HTTPHandler {
	return &HTTPHandler{
		roomService:    rooms,
		historyService: history,
		authMiddleware: auth,
	}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	chat := r.Group("/chat")
	{
		chat.GET("/rooms", h.ListRooms)
		chat.GET("/my-rooms", h.authMiddleware.OptionalAuth(), h.GetMyRooms)

		chat.POST("/room", h.authMiddleware.RequireAuth(), h.CreateRoom)
		chat.POST("/join", h.authMiddleware.RequireAuth(), h.JoinRoom)
		chat.DELETE("/room/:id", h.authMiddleware.RequireAuth(), h.LeaveRoom)
		chat.DELETE("/rooms/:id", h.authMiddleware.RequireAuth(), h.DeleteRoom)
		chat.GET("/rooms/:id/messages", h.authMiddleware.RequireAuth(), h.GetMessages)
		chat.GET("/rooms/:id/users", h.authMiddleware.RequireAuth(), h.GetRoomUsers)
	}

	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (h *HTTPHandler) ListRooms(c *gin.Context) {
	ctx := c.Request.Context()

	rooms, err := h.roomService.ListRooms(ctx)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to list rooms")
		response.InternalError(c, "failed to list rooms")
		return
	}
	response.Success(c, rooms)
}

// GetMyRooms lists the caller's rooms; anonymous callers get an empty list.
func (h *HTTPHandler) GetMyRooms(c *gin.Context) {
	ctx := c.Request.Context()

	rooms, err := h.roomService.GetMyRooms(ctx, middleware.GetUserID(c))
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to list my rooms")
		response.InternalError(c, "failed to list rooms")
		return
	}
	response.Success(c, rooms)
}

func (h *HTTPHandler) CreateRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind create room request")
		response.BadRequest(c, err.Error())
		return
	}

	room, err := h.roomService.CreateRoom(ctx, middleware.GetUserID(c), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTitle) {
			response.BadRequest(c, err.Error())
			return
		}
		l.Error().Err(err).Msg("failed to create room")
		response.InternalError(c, "failed to create room")
		return
	}
	response.Created(c, room)
}

func (h *HTTPHandler) JoinRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "roomId is required")
		return
	}

	roomID := req.RoomID.String()
	if err := h.roomService.JoinRoom(ctx, middleware.GetUserID(c), roomID); err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			response.NotFound(c, "room not found")
			return
		}
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to join room")
		response.InternalError(c, "failed to join room")
		return
	}
	response.Success(c, gin.H{"roomId": roomID})
}

// LeaveRoom removes the caller's participation; the room itself stays.
func (h *HTTPHandler) LeaveRoom(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("id")

	if err := h.roomService.LeaveRoom(ctx, middleware.GetUserID(c), roomID); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to leave room")
		response.InternalError(c, "failed to leave room")
		return
	}
	response.Success(c, gin.H{"roomId": roomID})
}

func (h *HTTPHandler) DeleteRoom(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("id")

	err := h.roomService.DeleteRoom(ctx, middleware.GetUserID(c), roomID)
	switch {
	case err == nil:
		response.Success(c, gin.H{"roomId": roomID})
	case errors.Is(err, service.ErrRoomNotFound):
		response.NotFound(c, "room not found")
	case errors.Is(err, service.ErrNotCreator):
		response.Forbidden(c, err.Error())
	default:
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to delete room")
		response.InternalError(c, "failed to delete room")
	}
}

func (h *HTTPHandler) GetMessages(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("id")

	if _, err := domain.ParseRoomID(roomID); err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}

	direction := c.DefaultQuery("direction", string(store.DirectionBackward))
	if direction != string(store.DirectionBackward) && direction != string(store.DirectionForward) {
		response.BadRequest(c, "direction must be 'backward' or 'forward'")
		return
	}

	var cursor int64
	if s := c.Query("cursor"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < 0 {
			response.BadRequest(c, "cursor must be a message id")
			return
		}
		cursor = v
	}

	limit := service.DefaultPageLimit
	if s := c.Query("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = v
	}

	page, err := h.historyService.GetMessages(ctx, roomID, cursor, limit, store.ParseDirection(direction))
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to get messages")
		response.InternalError(c, "failed to get messages")
		return
	}
	response.Success(c, page)
}

func (h *HTTPHandler) GetRoomUsers(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("id")

	users, err := h.roomService.RoomUsers(ctx, roomID)
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			response.NotFound(c, "room not found")
			return
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to get room users")
		response.InternalError(c, "failed to get room users")
		return
	}
	response.Success(c, domain.RoomUsersResponse{RoomID: roomID, Users: users, Count: len(users)})
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
