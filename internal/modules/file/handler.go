package file

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/notedeck/core/internal/middleware"
	"github.com/notedeck/core/internal/pkg/apperr"
	"github.com/notedeck/core/internal/pkg/pagination"
	"github.com/notedeck/core/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	grp := rg.Group("/files")
	grp.POST("", authMW, h.upload)
	grp.GET("/mine", authMW, h.mine)
	grp.DELETE("/:id", authMW, h.remove)

	// Reads only need the group's optional auth; access is resolved against
	// the owning note's visibility.
	grp.GET("/:id", h.get)
	grp.GET("/:id/download", h.download)
}

func (h *Handler) upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "a multipart \"file\" field is required")
		return
	}
	if header.Size > MaxFileSize {
		response.Error(c, apperr.Validation("file exceeds the %d byte limit", MaxFileSize))
		return
	}

	src, err := header.Open()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, MaxFileSize+1))
	if err != nil {
		response.InternalError(c, err)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	f, err := h.svc.Upload(
		c.Request.Context(),
		middleware.CurrentUserID(c),
		c.PostForm("noteId"),
		header.Filename,
		mimeType,
		data,
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toResponse(f))
}

func (h *Handler) mine(c *gin.Context) {
	files, pag, err := h.svc.MyFiles(middleware.CurrentUserID(c), pagination.FromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]fileResponse, 0, len(files))
	for i := range files {
		out = append(out, toResponse(&files[i]))
	}
	response.Paged(c, out, pag)
}

func (h *Handler) get(c *gin.Context) {
	f, err := h.svc.Get(c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toResponse(f))
}

func (h *Handler) download(c *gin.Context) {
	f, data, err := h.svc.Download(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+f.OriginalName+`"`)
	c.Data(http.StatusOK, f.MimeType, data)
}

func (h *Handler) remove(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
