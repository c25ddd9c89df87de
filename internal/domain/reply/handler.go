package reply

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/replies", h.CreateReply)
	api.GET("/replies/:id", h.GetReply)
	api.POST("/replies/:id/invalidate", h.InvalidateReply)
	api.GET("/patients/:id/replies", h.ListReplies)
	api.POST("/patients/:id/refusal-confirmations", h.ConfirmRefusal)
}

func (h *Handler) CreateReply(c echo.Context) error {
	var r Reply
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateReply(c.Request().Context(), &r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) GetReply(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.GetReply(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "reply not found")
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListReplies(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	sid, err := uuid.Parse(c.QueryParam("session_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session_id")
	}
	items, err := h.svc.ListReplies(c.Request().Context(), pid, c.QueryParam("programme_id"), sid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Reply{}
	}
	return c.JSON(http.StatusOK, items)
}

type invalidateRequest struct {
	Actor string `json:"actor"`
	Note  string `json:"note"`
}

func (h *Handler) InvalidateReply(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req invalidateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.InvalidateReply(c.Request().Context(), id, req.Actor, req.Note); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type confirmRefusalRequest struct {
	ProgrammeID string    `json:"programme_id"`
	SessionID   uuid.UUID `json:"session_id"`
	Actor       string    `json:"actor"`
	Note        string    `json:"note"`
}

func (h *Handler) ConfirmRefusal(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var req confirmRefusalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.ConfirmRefusal(c.Request().Context(), pid, req.ProgrammeID, req.SessionID, req.Actor, req.Note); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusCreated)
}
