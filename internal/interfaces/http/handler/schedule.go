package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/commercesync/internal/domain/integration"
	"github.com/erp/commercesync/internal/infrastructure/logger"
	"github.com/erp/commercesync/internal/infrastructure/scheduler"
	"github.com/erp/commercesync/internal/interfaces/http/dto"
)

// ScheduleService is the scheduler surface the admin API uses
type ScheduleService interface {
	List() []scheduler.ScheduleInfo
	Trigger(ctx context.Context, job *scheduler.Job) (bool, error)
}

// StoreFinder looks a store up by id
type StoreFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*integration.Store, error)
}

// ScheduleHandler exposes the recurring jobs and manual sync triggers
type ScheduleHandler struct {
	BaseHandler
	schedules ScheduleService
	stores    StoreFinder
}

// NewScheduleHandler creates a ScheduleHandler
func NewScheduleHandler(schedules ScheduleService, stores StoreFinder) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules, stores: stores}
}

// ListSchedules returns every registered recurring job ordered by id
func (h *ScheduleHandler) ListSchedules(c *gin.Context) {
	infos := h.schedules.List()
	out := make([]dto.ScheduleResponse, 0, len(infos))
	for _, info := range infos {
		r := dto.ScheduleResponse{
			ID:             info.ID,
			Type:           info.Type.String(),
			Interval:       info.Interval.String(),
			NextRunAt:      info.NextRunAt,
			LastEnqueuedAt: info.LastEnqueuedAt,
		}
		if info.StoreID != nil {
			r.StoreID = info.StoreID.String()
		}
		out = append(out, r)
	}
	c.JSON(http.StatusOK, dto.NewListResponse(out, len(out)))
}

// TriggerSync queues an immediate sync of one entity type of an active store.
// A job already queued or running under the same identity is reported as a conflict.
func (h *ScheduleHandler) TriggerSync(c *gin.Context) {
	var req dto.TriggerSyncRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	storeID, err := uuid.Parse(req.StoreID)
	if err != nil {
		h.HandleError(c, integration.ErrInvalidStoreID)
		return
	}
	entityType, err := integration.ParseEntityType(req.EntityType)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	ctx := c.Request.Context()
	store, err := h.stores.FindByID(ctx, storeID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !store.Active {
		h.HandleError(c, integration.ErrStoreInactive)
		return
	}

	job, err := scheduler.NewSyncJob(storeID, entityType)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	queued, err := h.schedules.Trigger(ctx, job)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	logger.GetGinLogger(c).Info("Manual sync requested",
		zap.String("job_id", job.ID),
		zap.Bool("queued", queued),
	)
	if !queued {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeConflict), dto.ErrCodeConflict,
			"a sync for this store and entity type is already queued or running")
		return
	}
	h.Accepted(c, dto.TriggerSyncResponse{JobID: job.ID, Queued: true})
}
