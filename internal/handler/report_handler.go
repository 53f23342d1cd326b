package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safevoice-app/safevoice-api/internal/dto"
	"github.com/safevoice-app/safevoice-api/internal/models"
	"github.com/safevoice-app/safevoice-api/internal/service"
	"github.com/safevoice-app/safevoice-api/pkg/evidence"
	appErrors "github.com/safevoice-app/safevoice-api/pkg/errors"
	"github.com/safevoice-app/safevoice-api/pkg/response"
)

// ReportHandler wires HTTP endpoints to the report service.
type ReportHandler struct {
	service *service.ReportService
	export  *service.ExportService
}

// NewReportHandler creates a new handler.
func NewReportHandler(svc *service.ReportService, export *service.ExportService) *ReportHandler {
	return &ReportHandler{service: svc, export: export}
}

// Create godoc
// @Summary Submit an anonymous report
// @Description Accepts a multipart submission with up to five evidence files
// @Tags Reports
// @Accept mpfd
// @Produce json
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Create(c *gin.Context) {
	var req dto.CreateReportRequest
	var files []evidence.File

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid report payload"))
			return
		}
		form, err := c.MultipartForm()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart form"))
			return
		}
		for _, fh := range form.File["evidence"] {
			f, err := fh.Open()
			if err != nil {
				response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable evidence file"))
				return
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable evidence file"))
				return
			}
			files = append(files, evidence.File{
				Name: fh.Filename,
				MIME: fh.Header.Get("Content-Type"),
				Data: data,
			})
		}
	} else {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid report payload"))
			return
		}
	}

	report, err := h.service.Create(c.Request.Context(), service.ReportIntake{
		Category:     req.Category,
		IncidentDate: req.IncidentDate,
		City:         req.City,
		State:        req.State,
		Neighborhood: req.Neighborhood,
		Narrative:    req.Narrative,
		Files:        files,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, report)
}

// GetPublic godoc
// @Summary Reporter self-service lookup
// @Description Returns the restricted projection for a tracking code
// @Tags Reports
// @Produce json
// @Param publicId path string true "Tracking code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/public/{publicId} [get]
func (h *ReportHandler) GetPublic(c *gin.Context) {
	report, err := h.service.GetByPublicID(c.Request.Context(), c.Param("publicId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Get returns the full report for administrators.
func (h *ReportHandler) Get(c *gin.Context) {
	report, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// List godoc
// @Summary List reports
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	var query dto.ListReportsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}

	filter, err := buildReportFilter(query)
	if err != nil {
		response.Error(c, err)
		return
	}

	reports, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reports, pagination)
}

// UpdateStatus changes triage status, optionally storing notes.
func (h *ReportHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	report, err := h.service.UpdateStatus(c.Request.Context(), actorFromContext(c), c.Param("id"), req.Status, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// UpdatePriority overrides the urgency tier.
func (h *ReportHandler) UpdatePriority(c *gin.Context) {
	var req dto.UpdatePriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid priority payload"))
		return
	}

	report, err := h.service.UpdatePriority(c.Request.Context(), actorFromContext(c), c.Param("id"), req.Priority)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// UpdateNotes replaces administrator notes.
func (h *ReportHandler) UpdateNotes(c *gin.Context) {
	var req dto.UpdateNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid notes payload"))
		return
	}

	report, err := h.service.UpdateNotes(c.Request.Context(), actorFromContext(c), c.Param("id"), req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Delete removes a report permanently.
func (h *ReportHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "report deleted"}, nil)
}

// Stats returns the aggregate snapshot.
func (h *ReportHandler) Stats(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Export renders the filtered report set in the requested format.
func (h *ReportHandler) Export(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	format, err := service.ParseExportFormat(query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}

	var listQuery dto.ListReportsQuery
	_ = c.ShouldBindQuery(&listQuery)
	filter, err := buildReportFilter(listQuery)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.export.Generate(c.Request.Context(), actorFromContext(c), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download streams an archived export referenced by a signed token.
func (h *ReportHandler) Download(c *gin.Context) {
	download, err := h.export.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	contentType := "application/octet-stream"
	switch download.Format {
	case service.ExportJSON:
		contentType = "application/json"
	case service.ExportCSV:
		contentType = "text/csv"
	case service.ExportPDF:
		contentType = "application/pdf"
	}

	c.Header("Content-Disposition", `attachment; filename="`+download.Filename+`"`)
	c.Header("Content-Type", contentType)
	c.File(download.File.Name())
}

func buildReportFilter(query dto.ListReportsQuery) (models.ReportFilter, error) {
	filter := models.ReportFilter{
		Search:   query.Search,
		Page:     query.Page,
		PageSize: query.PageSize,
	}

	var details []string
	if query.Status != "" {
		status := models.ReportStatus(query.Status)
		if !models.ValidStatus(status) {
			details = append(details, "status: invalid value")
		}
		filter.Status = &status
	}
	if query.Category != "" {
		category := models.ReportCategory(query.Category)
		if !models.ValidCategory(category) {
			details = append(details, "category: invalid value")
		}
		filter.Category = &category
	}
	if query.Priority != "" {
		priority := models.ReportPriority(query.Priority)
		if !models.ValidPriority(priority) {
			details = append(details, "priority: invalid value")
		}
		filter.Priority = &priority
	}
	if query.From != "" {
		from, err := parseDateParam(query.From)
		if err != nil {
			details = append(details, "from: "+err.Error())
		} else {
			filter.CreatedFrom = &from
		}
	}
	if query.To != "" {
		to, err := parseDateParam(query.To)
		if err != nil {
			details = append(details, "to: "+err.Error())
		} else {
			filter.CreatedTo = &to
		}
	}

	if len(details) > 0 {
		return models.ReportFilter{}, appErrors.WithDetails(appErrors.ErrValidation, details...)
	}
	return filter, nil
}

func parseDateParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "expected RFC3339 or YYYY-MM-DD")
}
