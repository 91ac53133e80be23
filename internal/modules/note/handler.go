package note

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/notedeck/core/internal/middleware"
	"github.com/notedeck/core/internal/models"
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
	grp := rg.Group("/notes")

	grp.GET("", h.list)
	grp.GET("/search", h.search)
	grp.GET("/popular", h.popular)
	grp.GET("/mine", authMW, h.mine)
	grp.GET("/slug/:slug", h.getBySlug)
	grp.GET("/:id", h.getByID)
	grp.GET("/:id/versions", authMW, h.versions)

	grp.POST("", authMW, h.create)
	grp.PUT("/:id", authMW, h.update)
	grp.PATCH("/:id", authMW, h.update)
	grp.DELETE("/:id", authMW, h.remove)

	grp.POST("/:id/rate", authMW, h.rate)
	grp.POST("/:id/favorite", authMW, h.favorite)
	grp.POST("/:id/download", authMW, h.download)
}

// optionsFromQuery reads the shared filter params off the request.
func optionsFromQuery(c *gin.Context) ListOptions {
	opts := ListOptions{
		Category:   c.Query("category"),
		Author:     c.Query("author"),
		Difficulty: c.Query("difficulty"),
	}
	if raw := c.Query("tags"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				opts.Tags = append(opts.Tags, tag)
			}
		}
	}
	return opts
}

func listResponses(notes []models.NoteModel) []noteResponse {
	out := make([]noteResponse, 0, len(notes))
	for i := range notes {
		out = append(out, toResponse(&notes[i], false))
	}
	return out
}

func (h *Handler) list(c *gin.Context) {
	notes, pag, err := h.svc.List(optionsFromQuery(c), pagination.FromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, listResponses(notes), pag)
}

func (h *Handler) search(c *gin.Context) {
	opts := optionsFromQuery(c)
	opts.Query = c.Query("q")
	notes, pag, err := h.svc.Search(opts, pagination.FromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, listResponses(notes), pag)
}

func (h *Handler) popular(c *gin.Context) {
	window := c.DefaultQuery("window", WindowAll)
	notes, pag, err := h.svc.Popular(c.Request.Context(), window, pagination.FromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, listResponses(notes), pag)
}

func (h *Handler) mine(c *gin.Context) {
	opts := optionsFromQuery(c)
	opts.Mine = true
	opts.CallerID = middleware.CurrentUserID(c)
	notes, pag, err := h.svc.List(opts, pagination.FromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, listResponses(notes), pag)
}

func (h *Handler) getByID(c *gin.Context) {
	id := c.Param("id")
	note, err := h.svc.GetByID(id, middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	// Fire-and-forget so the read path never blocks on the counter write.
	go func() {
		_ = h.svc.IncrementViewCount(id)
	}()

	response.OK(c, toResponse(note, true))
}

func (h *Handler) getBySlug(c *gin.Context) {
	note, err := h.svc.GetBySlug(c.Param("slug"), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	noteID := note.ID
	go func() {
		_ = h.svc.IncrementViewCount(noteID)
	}()

	response.OK(c, toResponse(note, true))
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateNoteDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	note, err := h.svc.Create(middleware.CurrentUserID(c), middleware.CurrentUsername(c), &dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toResponse(note, true))
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateNoteDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	note, err := h.svc.Update(c.Param("id"), middleware.CurrentUserID(c), &dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toResponse(note, true))
}

func (h *Handler) remove(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) rate(c *gin.Context) {
	var dto RateNoteDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	note, err := h.svc.Rate(c.Param("id"), middleware.CurrentUserID(c), middleware.CurrentUsername(c), &dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toResponse(note, true))
}

func (h *Handler) favorite(c *gin.Context) {
	favorited, count, err := h.svc.ToggleFavorite(c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"favorited": favorited, "favoriteCount": count})
}

func (h *Handler) download(c *gin.Context) {
	count, err := h.svc.IncrementDownloadCount(c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"downloadCount": count})
}

func (h *Handler) versions(c *gin.Context) {
	versions, err := h.svc.Versions(c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, versions)
}
