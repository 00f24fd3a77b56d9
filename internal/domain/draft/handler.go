package draft

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wardnote/wardnote/internal/domain/note"
	"github.com/wardnote/wardnote/internal/platform/auth"
)

// Handler is the autosave surface. It accepts editor keystroke batches,
// acknowledges as soon as the local cache write lands, and leaves the remote
// flush to the debounce.
type Handler struct {
	mgr *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{mgr: mgr}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("physician", "nurse"))
	g.PATCH("/notes/:id/draft", h.Autosave)
	g.GET("/notes/:id/draft", h.Recover)
	g.POST("/notes/:id/draft/flush", h.Flush)
}

func noteID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid note id")
	}
	return id, nil
}

// Autosave accepts one batch of local edits. 202: the edits are durable
// locally and queued for the debounced remote flush.
func (h *Handler) Autosave(c echo.Context) error {
	id, err := noteID(c)
	if err != nil {
		return err
	}
	var patch note.SectionPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.mgr.NoteChanged(c.Request().Context(), id, patch); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusAccepted)
}

// Recover returns the locally cached pending edits for a note, for a client
// reopening an editing session after a crash.
func (h *Handler) Recover(c echo.Context) error {
	id, err := noteID(c)
	if err != nil {
		return err
	}
	patch, err := h.mgr.Recover(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if patch.IsEmpty() {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, patch)
}

// Flush forces the pending edits through to durable storage immediately.
// Clients call this before handing the note to the sign dialog.
func (h *Handler) Flush(c echo.Context) error {
	id, err := noteID(c)
	if err != nil {
		return err
	}
	if err := h.mgr.Flush(c.Request().Context(), id); err != nil {
		if errors.Is(err, note.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "note not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
