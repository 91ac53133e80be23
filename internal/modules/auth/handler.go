package auth

import (
	"github.com/gin-gonic/gin"
	"github.com/notedeck/core/internal/config"
	"github.com/notedeck/core/internal/middleware"
	"github.com/notedeck/core/internal/pkg/jwt"
	"github.com/notedeck/core/internal/pkg/response"
)

type Handler struct {
	svc *Service
	cfg *config.AppConfig
}

func NewHandler(svc *Service, cfg *config.AppConfig) *Handler {
	return &Handler{svc: svc, cfg: cfg}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	grp := rg.Group("/auth")
	grp.POST("/register", h.register)
	grp.POST("/login", h.login)
	grp.GET("/me", authMW, h.me)
}

func (h *Handler) register(c *gin.Context) {
	var dto RegisterDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	user, err := h.svc.Register(&dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	token, err := jwt.Sign(user.ID, user.Username, h.cfg.JWTTTL())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, tokenResponse{Token: token, User: toUserResponse(user)})
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	user, err := h.svc.Login(&dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	token, err := jwt.Sign(user.ID, user.Username, h.cfg.JWTTTL())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, tokenResponse{Token: token, User: toUserResponse(user)})
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.svc.GetByID(middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toUserResponse(user))
}
