package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/warehouse-core/internal/domain"
)

// CreateTask creates an operator task
func (h *WarehouseHandlers) CreateTask(c *gin.Context) error {
	var req struct {
		Type         string `json:"type" binding:"required,task_type"`
		Priority     string `json:"priority" binding:"omitempty,priority"`
		FromLocation string `json:"fromLocation"`
		ToLocation   string `json:"toLocation"`
		SKU          string `json:"sku"`
		Quantity     int    `json:"quantity" binding:"gte=0"`
		Assignee     string `json:"assignee"`
		ParentID     string `json:"parentId"`
	}
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	task, err := h.service.CreateTask(c.Request.Context(), domain.TaskSpec{
		Type:         domain.TaskType(req.Type),
		Priority:     domain.Priority(req.Priority),
		FromLocation: req.FromLocation,
		ToLocation:   req.ToLocation,
		SKU:          req.SKU,
		Quantity:     req.Quantity,
		Assignee:     req.Assignee,
		ParentID:     req.ParentID,
	})
	if err != nil {
		return err
	}

	c.JSON(http.StatusCreated, task)
	return nil
}

// GetTask returns a task
func (h *WarehouseHandlers) GetTask(c *gin.Context) error {
	task, err := h.service.GetTask(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, task)
	return nil
}

// ListTasks lists tasks matching the query filters
func (h *WarehouseHandlers) ListTasks(c *gin.Context) error {
	var query struct {
		Type     string `form:"type" binding:"omitempty,task_type"`
		Status   string `form:"status" binding:"omitempty,task_status"`
		Assignee string `form:"assignee"`
		ParentID string `form:"parentId"`
		SKU      string `form:"sku"`
	}
	if err := bindQuery(c, &query); err != nil {
		return err
	}

	tasks := h.service.ListTasks(c.Request.Context(), domain.TaskFilter{
		Type:     domain.TaskType(query.Type),
		Status:   domain.TaskStatus(query.Status),
		Assignee: query.Assignee,
		ParentID: query.ParentID,
		SKU:      query.SKU,
	})
	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"count": len(tasks),
	})
	return nil
}

// NextTask peeks at the highest priority pending task; 204 when none is waiting
func (h *WarehouseHandlers) NextTask(c *gin.Context) error {
	var query struct {
		Type string `form:"type" binding:"omitempty,task_type"`
	}
	if err := bindQuery(c, &query); err != nil {
		return err
	}

	task, ok := h.service.NextTask(c.Request.Context(), domain.TaskType(query.Type))
	if !ok {
		c.Status(http.StatusNoContent)
		return nil
	}
	c.JSON(http.StatusOK, task)
	return nil
}

// AssignTask assigns a pending task
func (h *WarehouseHandlers) AssignTask(c *gin.Context) error {
	var req struct {
		Assignee string `json:"assignee" binding:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	task, err := h.service.AssignTask(c.Request.Context(), c.Param("taskId"), req.Assignee)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, task)
	return nil
}

// StartTask starts an assigned task
func (h *WarehouseHandlers) StartTask(c *gin.Context) error {
	task, err := h.service.StartTask(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, task)
	return nil
}

// CompleteTask completes an in-progress task
func (h *WarehouseHandlers) CompleteTask(c *gin.Context) error {
	task, err := h.service.CompleteTask(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, task)
	return nil
}

// CancelTask cancels an open task
func (h *WarehouseHandlers) CancelTask(c *gin.Context) error {
	task, err := h.service.CancelTask(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, task)
	return nil
}

// ScheduleCount schedules a cycle count. Leaving bins empty counts the whole zone.
func (h *WarehouseHandlers) ScheduleCount(c *gin.Context) error {
	var req struct {
		ZoneID string   `json:"zoneId" binding:"required"`
		Bins   []string `json:"bins" binding:"omitempty,dive,required"`
	}
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	count, err := h.service.ScheduleCount(c.Request.Context(), req.ZoneID, req.Bins)
	if err != nil {
		return err
	}
	c.JSON(http.StatusCreated, count)
	return nil
}

// GetCount returns a cycle count
func (h *WarehouseHandlers) GetCount(c *gin.Context) error {
	count, err := h.service.GetCount(c.Request.Context(), c.Param("countId"))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, count)
	return nil
}

// ListCounts lists cycle counts, optionally by status
func (h *WarehouseHandlers) ListCounts(c *gin.Context) error {
	var query struct {
		Status string `form:"status" binding:"omitempty,count_status"`
	}
	if err := bindQuery(c, &query); err != nil {
		return err
	}

	counts := h.service.ListCounts(c.Request.Context(), domain.CountStatus(query.Status))
	c.JSON(http.StatusOK, gin.H{
		"counts": counts,
		"count":  len(counts),
	})
	return nil
}

// StartCount starts a scheduled count
func (h *WarehouseHandlers) StartCount(c *gin.Context) error {
	count, err := h.service.StartCount(c.Request.Context(), c.Param("countId"))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, count)
	return nil
}

// SubmitCount records a counted quantity for a bin. sku may be omitted when
// the bin holds a single SKU.
func (h *WarehouseHandlers) SubmitCount(c *gin.Context) error {
	var req struct {
		BinID   string `json:"binId" binding:"required"`
		SKU     string `json:"sku"`
		Counted *int   `json:"counted" binding:"required,gte=0"`
	}
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	variance, err := h.service.SubmitCount(c.Request.Context(), c.Param("countId"), req.BinID, req.SKU, *req.Counted)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, variance)
	return nil
}

// ApproveCount applies a reviewed count's adjustments
func (h *WarehouseHandlers) ApproveCount(c *gin.Context) error {
	ctx := c.Request.Context()
	countID := c.Param("countId")
	count, err := h.service.ApproveCount(ctx, countID)
	if err != nil {
		return err
	}

	h.logger.Audit(ctx, "approve_count", "cycle_count", countID, operator(c), map[string]any{
		"varianceItems": count.VarianceItems,
		"varianceValue": count.VarianceValue,
	})
	c.JSON(http.StatusOK, count)
	return nil
}
