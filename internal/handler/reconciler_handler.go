package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Amdreaith/elearning-api/internal/service"
	"github.com/Amdreaith/elearning-api/pkg/response"
)

type reconcilerService interface {
	ReconcileAll(ctx context.Context) (*service.ReconcileReport, error)
}

// ReconcilerHandler exposes the admin reconciliation trigger. It is only
// registered when the reconciler API is enabled in configuration.
type ReconcilerHandler struct {
	reconciler reconcilerService
}

// NewReconcilerHandler constructs ReconcilerHandler.
func NewReconcilerHandler(reconciler reconcilerService) *ReconcilerHandler {
	return &ReconcilerHandler{reconciler: reconciler}
}

// Reconcile godoc
// @Summary Rebuild denormalized projections from the enrollment ledger
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/reconcile [post]
func (h *ReconcilerHandler) Reconcile(c *gin.Context) {
	report, err := h.reconciler.ReconcileAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}
