package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler — выгрузки для администратора.
type ReportHandler struct {
	svc Marketplace
}

// NewReportHandler создаёт хендлер.
func NewReportHandler(svc Marketplace) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// Reconciliation — GET /api/v1/admin/reconciliation/report.xlsx.
func (h *ReportHandler) Reconciliation(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	buf, err := h.svc.ReconciliationReport(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	name := fmt.Sprintf("reconciliation-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
