package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"redas-backend/internal/export"
	"redas-backend/internal/models"
	"redas-backend/internal/service"
	"redas-backend/internal/storage"
	"redas-backend/internal/workflow"
)

// ReportHandler serves the report workflow endpoints.
type ReportHandler struct {
	svc   *service.ReportService
	store storage.Store
	log   *zap.Logger
	now   func() time.Time
}

// NewReportHandler creates a ReportHandler. store may be nil, which
// disables archiving.
func NewReportHandler(svc *service.ReportService, store storage.Store, log *zap.Logger) *ReportHandler {
	return &ReportHandler{svc: svc, store: store, log: log, now: time.Now}
}

// ── Reads ───────────────────────────────────────────────────────

// List returns a page of visible reports.
// Query: status, interval_type, report_type, start_date, end_date, search, page, per_page.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	page, err := h.svc.List(ctx, actor, models.ParseReportFilter(r.URL.Query()))
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to fetch reports")
		return
	}
	JSON(w, http.StatusOK, page)
}

// Get returns one report with its user, vetter and approver.
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rep, err := h.svc.Get(ctx, actor, id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to fetch report")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"data": rep})
}

// Statistics returns counts over the visible reports.
func (h *ReportHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	stats, err := h.svc.Statistics(ctx, actor)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to fetch statistics")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"data": stats})
}

// ── Writes ──────────────────────────────────────────────────────

// Create submits a new report as pending.
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req models.CreateReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rep, err := h.svc.Submit(ctx, actor, req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create report")
		return
	}
	JSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Report submitted successfully",
		"data":    rep,
	})
}

// Update edits a pending report owned by the caller.
func (h *ReportHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req models.UpdateReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rep, err := h.svc.Edit(ctx, actor, id, req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update report")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"message": "Report updated successfully",
		"data":    rep,
	})
}

// Delete soft-deletes a report.
func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.svc.Delete(ctx, actor, id); err != nil {
		writeServiceError(w, h.log, err, "Failed to delete report")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"message": "Report deleted successfully"})
}

// ── Review ──────────────────────────────────────────────────────

type reviewFunc func(context.Context, workflow.Actor, int64, models.ReviewRequest) (*models.ReportWithRelations, error)

// Vet moves a pending report to vetted.
func (h *ReportHandler) Vet(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.svc.Vet, "Report vetted successfully", "Failed to vet report")
}

// Approve moves a vetted report to approved.
func (h *ReportHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.svc.Approve, "Report approved successfully", "Failed to approve report")
}

// Reject rejects a pending or vetted report. Comments are required.
func (h *ReportHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.svc.Reject, "Report rejected successfully", "Failed to reject report")
}

func (h *ReportHandler) review(w http.ResponseWriter, r *http.Request, fn reviewFunc, success, failure string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	// An empty body is a review without comments.
	var req models.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rep, err := fn(ctx, actor, id, req)
	if err != nil {
		writeServiceError(w, h.log, err, failure)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"message": success,
		"data":    rep,
	})
}

// ── Export ──────────────────────────────────────────────────────

// Export downloads the filtered visible reports as an XLSX workbook.
func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	reports, err := h.svc.Export(ctx, actor, models.ParseReportFilter(r.URL.Query()))
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to export reports")
		return
	}

	now := h.now()
	data, err := export.Workbook(reports, now)
	if err != nil {
		h.log.Error("build export workbook", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to export reports")
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(now)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Archive writes the filtered export to file storage under
// exports/YYYY/MM/ and returns the stored file's metadata.
func (h *ReportHandler) Archive(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if !actor.Role.CanApprove() {
		JSONError(w, http.StatusForbidden, "Only approvers can archive report exports")
		return
	}
	if h.store == nil {
		JSONError(w, http.StatusServiceUnavailable, "File storage is not configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	reports, err := h.svc.Export(ctx, actor, models.ParseReportFilter(r.URL.Query()))
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to archive reports")
		return
	}

	now := h.now()
	data, err := export.Workbook(reports, now)
	if err != nil {
		h.log.Error("build archive workbook", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to archive reports")
		return
	}

	path := fmt.Sprintf("exports/%s/%s", now.Format("2006/01"), export.FileName(now))
	info, err := h.store.Save(ctx, path, bytes.NewReader(data), export.ContentType)
	if err != nil {
		h.log.Error("save archive", zap.String("path", path), zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to archive reports")
		return
	}

	h.log.Info("report export archived",
		zap.String("path", info.Path),
		zap.Int("reports", len(reports)),
		zap.Int64("actor_id", actor.ID))

	JSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Export archived successfully",
		"data":    info,
	})
}
