package note

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wardnote/wardnote/internal/platform/auth"
	"github.com/wardnote/wardnote/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("physician", "nurse"))
	readGroup.GET("/notes", h.ListNotes)
	readGroup.GET("/notes/:id", h.GetNote)
	readGroup.GET("/notes/:id/validation", h.GetValidation)
	readGroup.GET("/notes/:id/amendments", h.ListAmendments)
	readGroup.GET("/notes/:id/verify", h.VerifyNote)

	writeGroup := api.Group("", auth.RequireRole("physician", "nurse"))
	writeGroup.POST("/notes", h.CreateNote)
	writeGroup.PATCH("/notes/:id/sections", h.PatchSections)
	writeGroup.POST("/notes/:id/sign", h.SignNote)
	writeGroup.POST("/notes/:id/amendments", h.AmendNote)
}

func noteID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid note id")
	}
	return id, nil
}

// actor resolves the authenticated clinician from the request context.
func actor(c echo.Context) (uuid.UUID, string, error) {
	ctx := c.Request().Context()
	id, err := uuid.Parse(auth.ActorIDFromContext(ctx))
	if err != nil {
		return uuid.Nil, "", echo.NewHTTPError(http.StatusUnauthorized, "unknown actor")
	}
	return id, auth.ActorNameFromContext(ctx), nil
}

// mapError converts domain errors to HTTP errors. AuditWriteError is not
// handled here: the transition committed, so handlers return success with a
// reconciliation warning instead.
func mapError(err error) error {
	var invalid *InvalidTransitionError
	var blocked *ValidationBlockedError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "note not found")
	case errors.As(err, &invalid):
		return echo.NewHTTPError(http.StatusConflict, invalid.Error())
	case errors.As(err, &blocked):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]interface{}{
			"message":  "sign blocked by open documentation issues",
			"blockers": blocked.Result.Blockers,
			"warnings": blocked.Result.Warnings,
		})
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

type createNoteRequest struct {
	PatientID string `json:"patient_id"`
}

func (h *Handler) CreateNote(c echo.Context) error {
	var req createNoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actorID, actorName, err := actor(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	n, err := h.svc.StartDraft(ctx, auth.SessionFromContext(ctx), actorID, actorName, req.PatientID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) GetNote(c echo.Context) error {
	id, err := noteID(c)
	if err != nil {
		return err
	}
	n, err := h.svc.GetNote(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) ListNotes(c echo.Context) error {
	patientID := c.QueryParam("patient_id")
	if patientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) PatchSections(c echo.Context) error {
	id, err := noteID(c)
	if err != nil {
		return err
	}
	var patch SectionPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UpdateSections(c.Request().Context(), id, patch); err != nil {
		if errors.Is(err, ErrNoteSigned) {
			return echo.NewHTTPError(http.StatusConflict, ErrNoteSigned.Error())
		}
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetValidation(c echo.Context) error {
	id, err := noteID(c)
	if err != nil {
		return err
	}
	result, err := h.svc.ValidateForSigning(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) SignNote(c echo.Context) error {
	id, err := noteID(c)
	if err != nil {
		return err
	}
	actorID, actorName, err := actor(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	sig, err := h.svc.Sign(ctx, auth.SessionFromContext(ctx), id, actorID, actorName)

	var auditErr *AuditWriteError
	if errors.As(err, &auditErr) {
		// The sign committed; the caller must see success plus a
		// compliance-weight warning, never a silent loss.
		return c.JSON(http.StatusOK, map[string]interface{}{
			"signature":              sig.String(),
			"reconciliation_warning": auditErr.Error(),
		})
	}
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"signature": sig.String(),
	})
}

type amendRequest struct {
	Reason            string `json:"reason"`
	ChangeDescription string `json:"change_description"`
}

func (h *Handler) AmendNote(c echo.Context) error {
	id, err := noteID(c)
	if err != nil {
		return err
	}
	var req amendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actorID, actorName, err := actor(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	a, err := h.svc.Amend(ctx, auth.SessionFromContext(ctx), id, actorID, actorName, req.Reason, req.ChangeDescription)

	var auditErr *AuditWriteError
	if errors.As(err, &auditErr) {
		return c.JSON(http.StatusCreated, map[string]interface{}{
			"amendment":              a,
			"reconciliation_warning": auditErr.Error(),
		})
	}
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"amendment": a,
	})
}

func (h *Handler) ListAmendments(c echo.Context) error {
	id, err := noteID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.Amendments(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) VerifyNote(c echo.Context) error {
	id, err := noteID(c)
	if err != nil {
		return err
	}
	err = h.svc.Verify(c.Request().Context(), id)

	var ie *IntegrityError
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, map[string]interface{}{"verified": true})
	case errors.As(err, &ie):
		return c.JSON(http.StatusOK, map[string]interface{}{
			"verified": false,
			"detail":   ie.Error(),
		})
	case errors.Is(err, ErrNotSigned):
		return echo.NewHTTPError(http.StatusConflict, ErrNotSigned.Error())
	default:
		return mapError(err)
	}
}
