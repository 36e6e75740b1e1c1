package http

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/claim-approval/internal/application/service"
	"github.com/garyjia/claim-approval/internal/domain/entity"
)

// Multipart form fields of POST /api/claims
const (
	formLecturerID  = "lecturer_id"
	formHoursWorked = "hours_worked"
	formHourlyRate  = "hourly_rate"
	formNotes       = "notes"
	formDocuments   = "documents"
)

const (
	msgInvalidID       = "Invalid id."
	msgInvalidForm     = "Invalid claim form."
	msgInvalidBody     = "Invalid request body."
	msgUploadTooLarge  = "Upload exceeds the maximum request size."
	msgNumberRequired  = "The field %s must be a number."
	healthStatus       = "healthy"
	applicationVersion = "1.0.0"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	claims         service.ClaimService
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(claims service.ClaimService, maxUploadBytes int64, logger *zap.Logger) *Handlers {
	return &Handlers{claims: claims, maxUploadBytes: maxUploadBytes, logger: logger}
}

// Response represents a standard JSON response
type Response struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message,omitempty"`
	Data        interface{}       `json:"data,omitempty"`
	Error       string            `json:"error,omitempty"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CreateLecturerRequest is the body of POST /api/lecturers
type CreateLecturerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SubmitClaimResponse is the data of POST /api/claims
type SubmitClaimResponse struct {
	ClaimID  int64 `json:"claim_id"`
	Attached int   `json:"attached"`
	Partial  bool  `json:"partial"`
}

// ClaimItem is one claim of a listing with the review actions it accepts next
type ClaimItem struct {
	*entity.Claim
	Actions []string `json:"actions"`
}

func claimItems(result service.ClaimsResult) []ClaimItem {
	if !result.OK {
		return nil
	}
	items := make([]ClaimItem, 0, len(result.Claims))
	for _, c := range result.Claims {
		actions := result.Actions[c.ID]
		if actions == nil {
			actions = []string{}
		}
		items = append(items, ClaimItem{Claim: c, Actions: actions})
	}
	return items
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    healthStatus,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   applicationVersion,
		},
	})
}

// CreateLecturer handles POST /api/lecturers
func (h *Handlers) CreateLecturer(c *gin.Context) {
	var req CreateLecturerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid lecturer body", zap.Error(err))
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: msgInvalidBody})
		return
	}

	result := h.claims.CreateLecturer(c.Request.Context(), req.Name, req.Email)
	h.respond(c, http.StatusCreated, result.Outcome, result.Lecturer)
}

// ListLecturers handles GET /api/lecturers
func (h *Handlers) ListLecturers(c *gin.Context) {
	result := h.claims.ListLecturers(c.Request.Context())
	h.respond(c, http.StatusOK, result.Outcome, result.Lecturers)
}

// ClaimsForLecturer handles GET /api/lecturers/:id/claims
func (h *Handlers) ClaimsForLecturer(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	result := h.claims.ClaimsForLecturer(c.Request.Context(), id)
	h.respond(c, http.StatusOK, result.Outcome, claimItems(result))
}

// SubmitClaim handles POST /api/claims (multipart/form-data). A claim saved
// with a rejected attachment answers 201 with success=false and partial=true.
func (h *Handlers) SubmitClaim(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		h.logger.Warn("Invalid claim form", zap.Error(err))
		msg := msgInvalidForm
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = msgUploadTooLarge
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, Response{Success: false, Error: msg})
		return
	}
	defer func() {
		if err := form.RemoveAll(); err != nil {
			h.logger.Warn("Failed to remove multipart temp files", zap.Error(err))
		}
	}()

	req, fieldErrors := parseClaimForm(form)
	if len(fieldErrors) > 0 {
		c.JSON(http.StatusBadRequest, Response{
			Success:     false,
			Error:       firstFieldError(fieldErrors),
			FieldErrors: fieldErrors,
		})
		return
	}

	files, closeAll, err := openUploads(form.File[formDocuments])
	defer closeAll()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: msgInvalidForm})
		return
	}
	req.Files = files

	result := h.claims.SubmitClaim(c.Request.Context(), req)
	data := SubmitClaimResponse{ClaimID: result.ClaimID, Attached: result.Attached, Partial: result.Partial}
	if result.Partial {
		c.JSON(http.StatusCreated, Response{
			Success:     false,
			Message:     result.Message,
			Data:        data,
			Error:       result.Message,
			FieldErrors: result.FieldErrors,
		})
		return
	}
	h.respond(c, http.StatusCreated, result.Outcome, data)
}

// CoordinatorVerify handles POST /api/claims/:id/coordinator/verify
func (h *Handlers) CoordinatorVerify(c *gin.Context) {
	h.review(c, h.claims.CoordinatorVerify)
}

// CoordinatorReject handles POST /api/claims/:id/coordinator/reject
func (h *Handlers) CoordinatorReject(c *gin.Context) {
	h.review(c, h.claims.CoordinatorReject)
}

// ManagerApprove handles POST /api/claims/:id/manager/approve
func (h *Handlers) ManagerApprove(c *gin.Context) {
	h.review(c, h.claims.ManagerApprove)
}

// ManagerReject handles POST /api/claims/:id/manager/reject
func (h *Handlers) ManagerReject(c *gin.Context) {
	h.review(c, h.claims.ManagerReject)
}

func (h *Handlers) review(c *gin.Context, action func(ctx context.Context, claimID int64) service.ReviewResult) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	result := action(c.Request.Context(), id)
	h.respond(c, http.StatusOK, result.Outcome, result.Claim)
}

// PendingForCoordinator handles GET /api/coordinator/pending
func (h *Handlers) PendingForCoordinator(c *gin.Context) {
	result := h.claims.PendingForCoordinator(c.Request.Context())
	h.respond(c, http.StatusOK, result.Outcome, claimItems(result))
}

// HistoryForCoordinator handles GET /api/coordinator/history
func (h *Handlers) HistoryForCoordinator(c *gin.Context) {
	result := h.claims.HistoryForCoordinator(c.Request.Context())
	h.respond(c, http.StatusOK, result.Outcome, claimItems(result))
}

// PendingForManager handles GET /api/manager/pending
func (h *Handlers) PendingForManager(c *gin.Context) {
	result := h.claims.PendingForManager(c.Request.Context())
	h.respond(c, http.StatusOK, result.Outcome, claimItems(result))
}

// DownloadDocument handles GET /api/documents/:id
func (h *Handlers) DownloadDocument(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	h.sendFile(c, h.claims.DownloadDocument(c.Request.Context(), id))
}

// ExportClaimsReport handles GET /api/reports/claims.xlsx?scope=
func (h *Handlers) ExportClaimsReport(c *gin.Context) {
	scope := service.ReportScope(c.DefaultQuery("scope", string(service.ScopeAll)))
	h.sendFile(c, h.claims.ExportClaimsReport(c.Request.Context(), scope))
}

func (h *Handlers) sendFile(c *gin.Context, result service.FileResult) {
	if !result.OK || result.File == nil {
		h.respond(c, http.StatusOK, result.Outcome, nil)
		return
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": result.File.FileName})
	if disposition != "" {
		c.Header("Content-Disposition", disposition)
	}
	c.Data(http.StatusOK, result.File.ContentType, result.File.Content)
}

func (h *Handlers) respond(c *gin.Context, okStatus int, out service.Outcome, data interface{}) {
	if out.OK {
		c.JSON(okStatus, Response{Success: true, Message: out.Message, Data: data})
		return
	}
	c.JSON(statusFor(out.Kind), Response{
		Success:     false,
		Error:       out.Message,
		FieldErrors: out.FieldErrors,
	})
}

func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: msgInvalidID})
		return 0, false
	}
	return id, true
}

// statusFor maps an outcome kind to its HTTP status
func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindStateConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func parseClaimForm(form *multipart.Form) (service.SubmitClaimRequest, map[string]string) {
	value := func(key string) string {
		if vs := form.Value[key]; len(vs) > 0 {
			return strings.TrimSpace(vs[0])
		}
		return ""
	}

	var req service.SubmitClaimRequest
	fieldErrors := make(map[string]string)

	lecturerID, err := strconv.ParseInt(value(formLecturerID), 10, 64)
	if err != nil {
		fieldErrors["LecturerId"] = fmtNumber("LecturerId")
	}
	hours, err := strconv.Atoi(value(formHoursWorked))
	if err != nil {
		fieldErrors["HoursWorked"] = fmtNumber("HoursWorked")
	}
	rate, err := decimal.NewFromString(value(formHourlyRate))
	if err != nil {
		fieldErrors["HourlyRate"] = fmtNumber("HourlyRate")
	}

	req.LecturerID = lecturerID
	req.HoursWorked = hours
	req.HourlyRate = rate
	if vs := form.Value[formNotes]; len(vs) > 0 {
		req.Notes = vs[0]
	}
	return req, fieldErrors
}

// openUploads opens every file part in form order. The returned closer is
// always safe to call.
func openUploads(headers []*multipart.FileHeader) ([]service.FileUpload, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	uploads := make([]service.FileUpload, 0, len(headers))
	for _, fh := range headers {
		if fh == nil {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, err
		}
		opened = append(opened, f)
		uploads = append(uploads, service.FileUpload{Name: fh.Filename, Size: fh.Size, Content: f})
	}
	return uploads, closeAll, nil
}

func firstFieldError(fields map[string]string) string {
	for _, key := range []string{"LecturerId", "HoursWorked", "HourlyRate"} {
		if msg, ok := fields[key]; ok {
			return msg
		}
	}
	return msgInvalidForm
}

func fmtNumber(field string) string {
	return fmt.Sprintf(msgNumberRequired, field)
}
