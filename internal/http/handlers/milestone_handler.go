package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/dto"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/http/handlers/common"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/service"
)

// MilestoneHandler serves progress on milestones, the calendar and
// agreement expenses.
type MilestoneHandler struct {
	milestones *service.MilestoneService
	now        func() time.Time
}

func NewMilestoneHandler(milestones *service.MilestoneService) *MilestoneHandler {
	return &MilestoneHandler{milestones: milestones, now: time.Now}
}

// Complete POST /milestones/:id/complete
func (h *MilestoneHandler) Complete(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	ms, err := h.milestones.Complete(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ms)
}

// AddComment POST /milestones/:id/comments
func (h *MilestoneHandler) AddComment(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.CommentRequest
	if !common.BindJSON(c, &req) {
		return
	}

	comment, err := h.milestones.AddComment(c.Request.Context(), actor, id, req.Content)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, comment)
}

// Comments GET /milestones/:id/comments
func (h *MilestoneHandler) Comments(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	items, err := h.milestones.Comments(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"comments": items})
}

// AddFile POST /milestones/:id/files (multipart "file")
func (h *MilestoneHandler) AddFile(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	up, f, ok := common.FormFile(c, "file")
	if !ok {
		return
	}
	defer f.Close()

	file, err := h.milestones.AddFile(c.Request.Context(), actor, id, up)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, file)
}

// Files GET /milestones/:id/files
func (h *MilestoneHandler) Files(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	items, err := h.milestones.Files(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": items})
}

// Calendar GET /calendar?from=YYYY-MM-DD&to=YYYY-MM-DD
// Without a range it shows the current month.
func (h *MilestoneHandler) Calendar(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	now := h.now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	var err error
	if raw := c.Query("from"); raw != "" {
		if from, err = parseDate("from", raw); err != nil {
			common.RespondError(c, err)
			return
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err = parseDate("to", raw); err != nil {
			common.RespondError(c, err)
			return
		}
	}

	items, err := h.milestones.Calendar(c.Request.Context(), actor, from, to)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "milestones": items})
}

// AddExpense POST /agreements/:id/expenses
func (h *MilestoneHandler) AddExpense(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	agreementID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	var req service.CreateExpenseInput
	if !common.BindJSON(c, &req) {
		return
	}

	expense, err := h.milestones.AddExpense(c.Request.Context(), actor, agreementID, req)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, expense)
}

// Expenses GET /agreements/:id/expenses
func (h *MilestoneHandler) Expenses(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	agreementID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	items, total, err := h.milestones.Expenses(c.Request.Context(), actor, agreementID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"expenses": items, "total": total})
}

// DeleteExpense DELETE /agreements/:id/expenses/:expenseId
func (h *MilestoneHandler) DeleteExpense(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	agreementID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}
	expenseID, ok := common.UUIDParam(c, "expenseId")
	if !ok {
		return
	}

	if err := h.milestones.DeleteExpense(c.Request.Context(), actor, agreementID, expenseID); err != nil {
		common.RespondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
