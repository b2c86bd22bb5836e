package api

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"

	"dex-task-service/internal/models"
	"dex-task-service/internal/task-manager/services"
)

type TaskHandler struct {
	Service *services.TaskService
}

func NewTaskHandler(service *services.TaskService) *TaskHandler {
	return &TaskHandler{Service: service}
}

type CreateTaskRequest struct {
	Type    string `json:"type" validate:"required"`
	Context string `json:"context" validate:"required"`
}

type UpdateContextRequest struct {
	Context string `json:"context" validate:"required"`
}

func writeError(c *app.RequestContext, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, utils.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, utils.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, utils.H{"error": err.Error()})
	}
}

func (h *TaskHandler) CreateTask(ctx context.Context, c *app.RequestContext) {
	var req CreateTaskRequest
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	task, err := h.Service.CreateTask(models.TaskType(req.Type), req.Context)
	if err != nil {
		log.Printf("TaskHandler: create task: %v", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) GetTasks(ctx context.Context, c *app.RequestContext) {
	status := models.TaskStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid status filter: " + string(status)})
		return
	}
	tasks, err := h.Service.Tasks.List(status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) GetTaskByID(ctx context.Context, c *app.RequestContext) {
	task, err := h.Service.Tasks.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) GetTaskStats(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	if _, err := h.Service.Tasks.Get(id); err != nil {
		writeError(c, err)
		return
	}
	stats, err := h.Service.Tasks.Stats(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *TaskHandler) StopTask(ctx context.Context, c *app.RequestContext) {
	task, err := h.Service.StopTask(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) ResumeTask(ctx context.Context, c *app.RequestContext) {
	task, err := h.Service.ResumeTask(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(ctx context.Context, c *app.RequestContext) {
	if err := h.Service.DeleteTask(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.H{"status": string(models.TaskStatusDeleted)})
}

func (h *TaskHandler) UpdateTaskContext(ctx context.Context, c *app.RequestContext) {
	var req UpdateContextRequest
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	task, err := h.Service.UpdateTaskContext(c.Param("id"), req.Context)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// GetContextSchemas exposes the per-type context schemas so clients can
// build forms and validate before submitting.
func (h *TaskHandler) GetContextSchemas(ctx context.Context, c *app.RequestContext) {
	c.JSON(http.StatusOK, models.ContextSchemas)
}

// ValidateTaskContext dry-runs a context payload through the same checks
// CreateTask applies, without creating anything. The validation verdict is a
// 200 either way.
func (h *TaskHandler) ValidateTaskContext(ctx context.Context, c *app.RequestContext) {
	var req CreateTaskRequest
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	if err := h.Service.ValidateContext(models.TaskType(req.Type), req.Context); err != nil {
		c.JSON(http.StatusOK, utils.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, utils.H{"valid": true})
}
