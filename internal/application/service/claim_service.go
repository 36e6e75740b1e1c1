package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/garyjia/claim-approval/internal/application/dispatcher"
	"github.com/garyjia/claim-approval/internal/application/port"
	"github.com/garyjia/claim-approval/internal/domain/entity"
	"github.com/garyjia/claim-approval/internal/domain/event"
	"github.com/garyjia/claim-approval/pkg/utils"
	"go.uber.org/zap"
)

// DefaultRequestTimeout bounds every façade call when none is configured
const DefaultRequestTimeout = 15 * time.Second

// Caller-facing messages
const (
	MsgClaimSubmitted   = "Claim submitted successfully!"
	MsgClaimPartial     = "Claim #%d was saved with %d document(s) attached, but a document was rejected: %s"
	MsgClaimVerified    = "Claim #%d verified successfully!"
	MsgClaimApproved    = "Claim #%d approved successfully!"
	MsgClaimRejected    = "Claim #%d rejected."
	MsgLecturerCreated  = "Lecturer %s created successfully!"
	MsgLecturerNotFound = "Lecturer not found."
	MsgDuplicateEmail   = "A lecturer with this email already exists."
	MsgNameRequired     = "The Name field is required."
	MsgEmailRequired    = "The Email field is required."
	MsgEmailInvalid     = "The Email field is not a valid e-mail address."
	MsgDocumentNotFound = "Document not found."
	MsgUnexpected       = "An unexpected error occurred. Please try again."
	MsgSubmitFailed     = "Error submitting claim."
	MsgLecturerFailed   = "Error creating lecturer."
	MsgDownloadFailed   = "Error downloading file."
	MsgLecturersFailed  = "Error loading lecturers."
	MsgClaimsFailed     = "Error loading claims."
	MsgReportFailed     = "Error generating report."
	MsgReportGenerated  = "Report generated."
	MsgListed           = "OK"
)

const (
	reportFileName        = "claims-report.xlsx"
	fieldHoursWorked      = "HoursWorked"
	fieldHourlyRate       = "HourlyRate"
	fieldNotes            = "Notes"
	fieldName             = "Name"
	fieldEmail            = "Email"
	fieldLecturer         = "LecturerId"
	fieldDocuments        = "Documents"
	fieldReportScope      = "scope"
	msgUnknownReportScope = "Unknown report scope."
)

// ClaimService is the caller-facing workflow façade. Every method returns
// an Outcome-bearing result and never panics.
type ClaimService interface {
	SubmitClaim(ctx context.Context, req SubmitClaimRequest) SubmitClaimResult
	CreateLecturer(ctx context.Context, name, email string) LecturerResult
	ListLecturers(ctx context.Context) LecturersResult
	DownloadDocument(ctx context.Context, documentID int64) FileResult

	CoordinatorVerify(ctx context.Context, claimID int64) ReviewResult
	CoordinatorReject(ctx context.Context, claimID int64) ReviewResult
	ManagerApprove(ctx context.Context, claimID int64) ReviewResult
	ManagerReject(ctx context.Context, claimID int64) ReviewResult

	PendingForCoordinator(ctx context.Context) ClaimsResult
	HistoryForCoordinator(ctx context.Context) ClaimsResult
	PendingForManager(ctx context.Context) ClaimsResult
	ClaimsForLecturer(ctx context.Context, lecturerID int64) ClaimsResult

	ExportClaimsReport(ctx context.Context, scope ReportScope) FileResult
}

// ClaimServiceDeps groups the collaborators of the façade
type ClaimServiceDeps struct {
	Claims         port.ClaimRepository
	Lecturers      port.LecturerRepository
	Tx             port.TransactionManager
	Documents      DocumentStore
	Reviews        ReviewService
	Reports        ReportService
	Dispatcher     dispatcher.Dispatcher
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

type claimServiceImpl struct {
	claimRepo    port.ClaimRepository
	lecturerRepo port.LecturerRepository
	txManager    port.TransactionManager
	documents    DocumentStore
	reviews      ReviewService
	reports      ReportService
	dispatcher   dispatcher.Dispatcher
	timeout      time.Duration
	logger       *zap.Logger
}

// NewClaimService creates the workflow façade
func NewClaimService(deps ClaimServiceDeps) ClaimService {
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &claimServiceImpl{
		claimRepo:    deps.Claims,
		lecturerRepo: deps.Lecturers,
		txManager:    deps.Tx,
		documents:    deps.Documents,
		reviews:      deps.Reviews,
		reports:      deps.Reports,
		dispatcher:   deps.Dispatcher,
		timeout:      timeout,
		logger:       logger,
	}
}

// SubmitClaim validates the claim fields, creates the claim and attaches the
// files in order. A rejected file stops processing and leaves the claim with
// the documents attached so far (Partial). A storage failure or cancellation
// removes the claim and every file written for it.
func (s *claimServiceImpl) SubmitClaim(ctx context.Context, req SubmitClaimRequest) (result SubmitClaimResult) {
	defer s.recoverOutcome("SubmitClaim", &result.Outcome)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if out, ok := validateClaimFields(req); !ok {
		return SubmitClaimResult{Outcome: out}
	}

	if _, err := s.lecturerRepo.FindLecturer(ctx, req.LecturerID); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			out := failure(KindValidation, MsgLecturerNotFound)
			out.FieldErrors = map[string]string{fieldLecturer: MsgLecturerNotFound}
			return SubmitClaimResult{Outcome: out}
		}
		s.logger.Error("Failed to load lecturer", zap.Int64("lecturer_id", req.LecturerID), zap.Error(err))
		return SubmitClaimResult{Outcome: failure(KindStorage, MsgSubmitFailed)}
	}

	claim := &entity.Claim{
		LecturerID:          req.LecturerID,
		HoursWorked:         req.HoursWorked,
		HourlyRate:          req.HourlyRate,
		Notes:               strings.TrimSpace(req.Notes),
		SubmittedAt:         time.Now().UTC(),
		Status:              entity.StatusPending,
		CoordinatorDecision: entity.DecisionUndecided,
		ManagerDecision:     entity.DecisionUndecided,
	}
	if err := s.claimRepo.CreateClaim(ctx, claim); err != nil {
		s.logger.Error("Failed to create claim", zap.Int64("lecturer_id", req.LecturerID), zap.Error(err))
		return SubmitClaimResult{Outcome: failure(KindStorage, MsgSubmitFailed)}
	}

	var written []string
	rollback := func(cause error) SubmitClaimResult {
		s.rollbackSubmission(ctx, claim.ID, written, cause)
		return SubmitClaimResult{Outcome: outcomeOf(cause, MsgSubmitFailed)}
	}

	attached := 0
	for i, file := range req.Files {
		if file.Content == nil || file.Size == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return rollback(entity.NewStorageError("Claim submission was cancelled.", err))
		}

		key, err := s.documents.Store(ctx, file.Name, file.Content, file.Size)
		if err != nil {
			if errors.Is(err, entity.ErrValidation) {
				return s.partialSubmission(ctx, claim, attached, i, err)
			}
			return rollback(err)
		}
		written = append(written, key)

		doc := &entity.SupportingDocument{
			ClaimID:          claim.ID,
			OriginalFileName: file.Name,
			StoredFileName:   key,
			FileSize:         file.Size,
			FileType:         truncateRunes(filepath.Ext(file.Name), entity.MaxFileTypeLength),
			UploadedAt:       time.Now().UTC(),
		}
		if err := s.claimRepo.CreateDocument(ctx, doc); err != nil {
			s.logger.Error("Failed to record document",
				zap.Int64("claim_id", claim.ID),
				zap.String("file_name", file.Name),
				zap.Error(err))
			return rollback(entity.NewStorageError(MsgSubmitFailed, err))
		}
		attached++
	}

	s.logger.Info("Claim submitted",
		zap.Int64("claim_id", claim.ID),
		zap.Int64("lecturer_id", claim.LecturerID),
		zap.Int("documents", attached))
	s.emit(ctx, event.NewEvent(event.TypeClaimSubmitted, claim.ID, map[string]interface{}{
		event.KeyLecturerID: claim.LecturerID,
		event.KeyDocuments:  attached,
		event.KeyPartial:    false,
	}))

	return SubmitClaimResult{Outcome: success(MsgClaimSubmitted), ClaimID: claim.ID, Attached: attached}
}

func (s *claimServiceImpl) partialSubmission(ctx context.Context, claim *entity.Claim, attached, index int, cause error) SubmitClaimResult {
	out := outcomeOf(cause, MsgSubmitFailed)
	rejection := out.Message
	out.Message = fmt.Sprintf(MsgClaimPartial, claim.ID, attached, rejection)
	out.FieldErrors = map[string]string{fieldDocuments: rejection}

	s.logger.Warn("Claim saved with rejected document",
		zap.Int64("claim_id", claim.ID),
		zap.Int("file_index", index),
		zap.Int("attached", attached),
		zap.String("reason", rejection))
	s.emit(ctx, event.NewEvent(event.TypeClaimSubmitted, claim.ID, map[string]interface{}{
		event.KeyLecturerID: claim.LecturerID,
		event.KeyDocuments:  attached,
		event.KeyPartial:    true,
	}))

	return SubmitClaimResult{Outcome: out, ClaimID: claim.ID, Attached: attached, Partial: true}
}

// rollbackSubmission runs detached from ctx so cleanup survives a cancelled request.
func (s *claimServiceImpl) rollbackSubmission(ctx context.Context, claimID int64, keys []string, cause error) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	s.logger.Warn("Rolling back claim submission",
		zap.Int64("claim_id", claimID),
		zap.Int("files", len(keys)),
		zap.Error(cause))

	for _, key := range keys {
		if err := s.documents.Remove(cleanupCtx, key); err != nil {
			s.logger.Error("Failed to remove file during rollback", zap.String("key", key), zap.Error(err))
		}
	}
	if err := s.claimRepo.DeleteClaim(cleanupCtx, claimID); err != nil && !errors.Is(err, entity.ErrNotFound) {
		s.logger.Error("Failed to delete claim during rollback", zap.Int64("claim_id", claimID), zap.Error(err))
	}
}

func validateClaimFields(req SubmitClaimRequest) (Outcome, bool) {
	fields := make(map[string]string)
	var order []string
	add := func(field string, err error) {
		if err != nil {
			fields[field] = err.Error()
			order = append(order, field)
		}
	}

	add(fieldHoursWorked, utils.ValidateIntRange(fieldHoursWorked, req.HoursWorked,
		entity.MinHoursWorked, entity.MaxHoursWorked))
	add(fieldHourlyRate, utils.ValidateAmount(fieldHourlyRate, req.HourlyRate,
		entity.MinHourlyRate, entity.MaxHourlyRate, entity.RateScale))
	add(fieldNotes, utils.ValidateLength(fieldNotes, strings.TrimSpace(req.Notes), entity.MaxNotesLength))

	if len(order) == 0 {
		return Outcome{}, true
	}
	out := failure(KindValidation, fields[order[0]])
	out.FieldErrors = fields
	return out, false
}

// CreateLecturer registers a lecturer whose email is not yet in use, compared
// case-insensitively.
func (s *claimServiceImpl) CreateLecturer(ctx context.Context, name, email string) (result LecturerResult) {
	defer s.recoverOutcome("CreateLecturer", &result.Outcome)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	name = utils.SanitizeString(name)
	email = strings.TrimSpace(email)

	fields := make(map[string]string)
	switch {
	case name == "":
		fields[fieldName] = MsgNameRequired
	default:
		if err := utils.ValidateLength(fieldName, name, entity.MaxLecturerNameLength); err != nil {
			fields[fieldName] = err.Error()
		}
	}
	switch {
	case email == "":
		fields[fieldEmail] = MsgEmailRequired
	case utils.ValidateEmail(email) != nil:
		fields[fieldEmail] = MsgEmailInvalid
	default:
		if err := utils.ValidateLength(fieldEmail, email, entity.MaxLecturerEmailLength); err != nil {
			fields[fieldEmail] = err.Error()
		}
	}
	if len(fields) > 0 {
		msg := fields[fieldName]
		if msg == "" {
			msg = fields[fieldEmail]
		}
		out := failure(KindValidation, msg)
		out.FieldErrors = fields
		return LecturerResult{Outcome: out}
	}

	lecturer := &entity.Lecturer{Name: name, Email: email, CreatedAt: time.Now().UTC()}
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.lecturerRepo.FindLecturerByEmail(txCtx, email)
		if err == nil && existing != nil {
			return port.ErrDuplicate
		}
		if err != nil && !errors.Is(err, entity.ErrNotFound) {
			return err
		}
		return s.lecturerRepo.CreateLecturer(txCtx, lecturer)
	})
	if errors.Is(err, port.ErrDuplicate) {
		out := failure(KindValidation, MsgDuplicateEmail)
		out.FieldErrors = map[string]string{fieldEmail: MsgDuplicateEmail}
		return LecturerResult{Outcome: out}
	}
	if err != nil {
		s.logger.Error("Failed to create lecturer", zap.String("email", email), zap.Error(err))
		return LecturerResult{Outcome: failure(KindStorage, MsgLecturerFailed)}
	}

	s.logger.Info("Lecturer created", zap.Int64("lecturer_id", lecturer.ID))
	s.emit(ctx, event.NewEvent(event.TypeLecturerCreated, 0, map[string]interface{}{
		event.KeyLecturerID: lecturer.ID,
	}))
	return LecturerResult{Outcome: success(fmt.Sprintf(MsgLecturerCreated, lecturer.Name)), Lecturer: lecturer}
}

func (s *claimServiceImpl) ListLecturers(ctx context.Context) (result LecturersResult) {
	defer s.recoverOutcome("ListLecturers", &result.Outcome)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	lecturers, err := s.lecturerRepo.ListLecturers(ctx)
	if err != nil {
		s.logger.Error("Failed to list lecturers", zap.Error(err))
		return LecturersResult{Outcome: failure(KindStorage, MsgLecturersFailed)}
	}
	if lecturers == nil {
		lecturers = []*entity.Lecturer{}
	}
	return LecturersResult{Outcome: success(MsgListed), Lecturers: lecturers}
}

// DownloadDocument resolves a document record and loads its bytes. A missing
// record and a missing file both report "Document not found."
func (s *claimServiceImpl) DownloadDocument(ctx context.Context, documentID int64) (result FileResult) {
	defer s.recoverOutcome("DownloadDocument", &result.Outcome)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc, err := s.claimRepo.FindDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return FileResult{Outcome: failure(KindNotFound, MsgDocumentNotFound)}
		}
		s.logger.Error("Failed to load document", zap.Int64("document_id", documentID), zap.Error(err))
		return FileResult{Outcome: failure(KindStorage, MsgDownloadFailed)}
	}

	content, name, err := s.documents.Retrieve(ctx, doc.StoredFileName, doc.OriginalFileName)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			s.logger.Warn("Document record has no stored file",
				zap.Int64("document_id", documentID),
				zap.String("key", doc.StoredFileName))
			return FileResult{Outcome: failure(KindNotFound, MsgDocumentNotFound)}
		}
		return FileResult{Outcome: outcomeOf(err, MsgDownloadFailed)}
	}

	ext := doc.FileType
	if ext == "" {
		ext = filepath.Ext(doc.OriginalFileName)
	}
	return FileResult{
		Outcome: success("File retrieved successfully."),
		File: &entity.DocumentFile{
			Content:     content,
			FileName:    name,
			ContentType: s.documents.ContentType(ext),
		},
	}
}

func (s *claimServiceImpl) CoordinatorVerify(ctx context.Context, claimID int64) ReviewResult {
	return s.runReview(ctx, "CoordinatorVerify", claimID, s.reviews.CoordinatorVerify, MsgClaimVerified)
}

func (s *claimServiceImpl) CoordinatorReject(ctx context.Context, claimID int64) ReviewResult {
	return s.runReview(ctx, "CoordinatorReject", claimID, s.reviews.CoordinatorReject, MsgClaimRejected)
}

func (s *claimServiceImpl) ManagerApprove(ctx context.Context, claimID int64) ReviewResult {
	return s.runReview(ctx, "ManagerApprove", claimID, s.reviews.ManagerApprove, MsgClaimApproved)
}

func (s *claimServiceImpl) ManagerReject(ctx context.Context, claimID int64) ReviewResult {
	return s.runReview(ctx, "ManagerReject", claimID, s.reviews.ManagerReject, MsgClaimRejected)
}

func (s *claimServiceImpl) runReview(
	ctx context.Context,
	op string,
	claimID int64,
	action func(context.Context, int64) (*entity.Claim, error),
	successMsg string,
) (result ReviewResult) {
	defer s.recoverOutcome(op, &result.Outcome)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	claim, err := action(ctx, claimID)
	if err != nil {
		return ReviewResult{Outcome: outcomeOf(err, MsgUnexpected)}
	}
	return ReviewResult{Outcome: success(fmt.Sprintf(successMsg, claimID)), Claim: claim}
}

func (s *claimServiceImpl) PendingForCoordinator(ctx context.Context) ClaimsResult {
	return s.runListing(ctx, "PendingForCoordinator", s.reviews.PendingForCoordinator)
}

func (s *claimServiceImpl) HistoryForCoordinator(ctx context.Context) ClaimsResult {
	return s.runListing(ctx, "HistoryForCoordinator", s.reviews.HistoryForCoordinator)
}

func (s *claimServiceImpl) PendingForManager(ctx context.Context) ClaimsResult {
	return s.runListing(ctx, "PendingForManager", s.reviews.PendingForManager)
}

func (s *claimServiceImpl) ClaimsForLecturer(ctx context.Context, lecturerID int64) (result ClaimsResult) {
	defer s.recoverOutcome("ClaimsForLecturer", &result.Outcome)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.lecturerRepo.FindLecturer(ctx, lecturerID); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return ClaimsResult{Outcome: failure(KindNotFound, MsgLecturerNotFound)}
		}
		s.logger.Error("Failed to load lecturer", zap.Int64("lecturer_id", lecturerID), zap.Error(err))
		return ClaimsResult{Outcome: failure(KindStorage, MsgClaimsFailed)}
	}

	return s.runListing(ctx, "ClaimsForLecturer", func(ctx context.Context) ([]*entity.Claim, error) {
		return s.reviews.ClaimsForLecturer(ctx, lecturerID)
	})
}

func (s *claimServiceImpl) runListing(ctx context.Context, op string, list func(context.Context) ([]*entity.Claim, error)) (result ClaimsResult) {
	defer s.recoverOutcome(op, &result.Outcome)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	claims, err := list(ctx)
	if err != nil {
		return ClaimsResult{Outcome: outcomeOf(err, MsgUnexpected)}
	}
	if claims == nil {
		claims = []*entity.Claim{}
	}
	actions := make(map[int64][]string, len(claims))
	for _, c := range claims {
		actions[c.ID] = ReviewActions(c)
	}
	return ClaimsResult{Outcome: success(MsgListed), Claims: claims, Actions: actions}
}

// ExportClaimsReport renders the claims in scope as an .xlsx workbook
func (s *claimServiceImpl) ExportClaimsReport(ctx context.Context, scope ReportScope) (result FileResult) {
	defer s.recoverOutcome("ExportClaimsReport", &result.Outcome)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query, err := scope.QueryFor()
	if err != nil {
		out := failure(KindValidation, msgUnknownReportScope)
		out.FieldErrors = map[string]string{fieldReportScope: msgUnknownReportScope}
		return FileResult{Outcome: out}
	}

	content, err := s.reports.ClaimsWorkbook(ctx, query)
	if err != nil {
		s.logger.Error("Failed to build claims report", zap.String("scope", string(scope)), zap.Error(err))
		return FileResult{Outcome: failure(KindStorage, MsgReportFailed)}
	}

	return FileResult{
		Outcome: success(MsgReportGenerated),
		File: &entity.DocumentFile{
			Content:     content,
			FileName:    reportFileName,
			ContentType: entity.ContentTypeXLSX,
		},
	}
}

// recoverOutcome turns a panic in op into a storage failure outcome
func (s *claimServiceImpl) recoverOutcome(op string, out *Outcome) {
	if r := recover(); r != nil {
		s.logger.Error("Recovered panic in claim service",
			zap.String("operation", op),
			zap.Any("panic", r),
			zap.Stack("stack"))
		*out = failure(KindStorage, MsgUnexpected)
	}
}

func (s *claimServiceImpl) emit(ctx context.Context, evt *event.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, evt); err != nil {
		s.logger.Warn("Failed to dispatch event",
			zap.String("event_type", evt.Type.String()),
			zap.Int64("claim_id", evt.ClaimID),
			zap.Error(err))
	}
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
