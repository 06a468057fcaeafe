package api

import (
	"errors"
	"net/http"

	"turnero/internal/dto/req"
	"turnero/internal/service"
	v1 "turnero/pkg/api/v1"

	"github.com/gin-gonic/gin"
)

type TurnoHandler struct {
	svc *service.TurnoService
}

func NewTurnoHandler(svc *service.TurnoService) *TurnoHandler {
	return &TurnoHandler{svc: svc}
}

func (h *TurnoHandler) ListTurnos(c *gin.Context) {
	var filter req.ListTurnosRequest
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, v1.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.svc.List(c.Request.Context(), filter))
}

func (h *TurnoHandler) CreateTurno(c *gin.Context) {
	var body req.CreateTurnoRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, v1.ErrorResponse{Error: err.Error()})
		return
	}

	t, err := h.svc.Create(c.Request.Context(), body)
	if errors.Is(err, service.ErrSlotTaken) {
		c.JSON(http.StatusConflict, v1.ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, v1.ErrorResponse{Error: "create failed"})
		return
	}
	c.JSON(http.StatusCreated, t)
}
