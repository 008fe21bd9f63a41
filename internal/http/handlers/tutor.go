package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/educhat-backend/internal/http/response"
	"github.com/yungbote/educhat-backend/internal/pkg/dbctx"
	"github.com/yungbote/educhat-backend/internal/services"
)

type TutorHandler struct {
	tutors services.TutorService
}

func NewTutorHandler(tutors services.TutorService) *TutorHandler {
	return &TutorHandler{tutors: tutors}
}

// GET /api/tutors?limit=50
func (h *TutorHandler) ListTutors(c *gin.Context) {
	limit := 50
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	tutors, err := h.tutors.List(dbc, limit)
	if err != nil {
		response.RespondServiceError(c, "list_tutors_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"tutors": tutors})
}

// GET /api/tutors/:id
func (h *TutorHandler) GetTutor(c *gin.Context) {
	tutorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, 400, "invalid_tutor_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	tutor, err := h.tutors.Get(dbc, tutorID)
	if err != nil {
		response.RespondServiceError(c, "tutor_not_found", err)
		return
	}
	response.RespondOK(c, gin.H{"tutor": tutor})
}

// POST /api/seed
func (h *TutorHandler) Seed(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	count, err := h.tutors.Seed(dbc)
	if err != nil {
		response.RespondServiceError(c, "seed_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"seeded": count})
}
