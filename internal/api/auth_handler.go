package api

import (
	"errors"
	"net/http"

	"turnero/internal/dto/resp"
	"turnero/internal/service"
	v1 "turnero/pkg/api/v1"
	"turnero/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var body v1.LoginRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, v1.ErrorResponse{Error: err.Error()})
		return
	}

	tokens, err := h.svc.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, v1.ErrorResponse{Error: "invalid email or password"})
			return
		}
		logger.Error("login failed", zap.Error(err), zap.String("trace_id", c.GetString("TraceID")))
		c.JSON(http.StatusInternalServerError, v1.ErrorResponse{Error: "login failed"})
		return
	}

	c.JSON(http.StatusOK, tokens)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var body v1.RefreshRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, v1.ErrorResponse{Error: err.Error()})
		return
	}

	out, err := h.svc.Refresh(c.Request.Context(), body.Refresh)
	if err != nil {
		if !errors.Is(err, service.ErrTokenInvalid) && !errors.Is(err, service.ErrSessionExpired) {
			logger.Error("refresh failed", zap.Error(err), zap.String("trace_id", c.GetString("TraceID")))
		}
		c.JSON(http.StatusUnauthorized, v1.ErrorResponse{Error: "invalid refresh token"})
		return
	}

	c.JSON(http.StatusOK, out)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	op := service.GetOperatorInfo(c.Request.Context())
	if op == nil {
		c.JSON(http.StatusUnauthorized, v1.ErrorResponse{Error: "unauthorized"})
		return
	}

	if err := h.svc.Logout(c.Request.Context(), op); err != nil {
		logger.Error("logout failed", zap.Error(err), zap.String("user_id", op.UserID))
	}

	c.Status(http.StatusNoContent)
}

// WhoAmI returns the profile carried by the access token.
func (h *AuthHandler) WhoAmI(c *gin.Context) {
	op := service.GetOperatorInfo(c.Request.Context())
	if op == nil {
		c.JSON(http.StatusUnauthorized, v1.ErrorResponse{Error: "unauthorized"})
		return
	}

	c.JSON(http.StatusOK, resp.ProfileResp{
		ID:     op.UserID,
		Email:  op.Email,
		Role:   op.Role,
		Tenant: op.Tenant,
	})
}
