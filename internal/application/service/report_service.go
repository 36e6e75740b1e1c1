package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/garyjia/claim-approval/internal/application/port"
	"github.com/garyjia/claim-approval/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	reportSheet      = "Claims"
	reportDateLayout = "2006-01-02 15:04"
)

// ReportScope selects which claims go into an export
type ReportScope string

const (
	ScopeAll                ReportScope = "all"
	ScopeCoordinatorPending ReportScope = "coordinator_pending"
	ScopeManagerPending     ReportScope = "manager_pending"
	ScopeReviewed           ReportScope = "reviewed"
)

var reportHeaders = []string{
	"Claim ID", "Lecturer", "Email", "Submitted", "Hours", "Rate", "Total",
	"Status", "Coordinator", "Manager", "Documents", "Notes",
}

// QueryFor returns the claim query behind a scope
func (s ReportScope) QueryFor() (port.ClaimQuery, error) {
	switch s {
	case ScopeAll, "":
		return port.ClaimQuery{Order: port.OldestFirst}, nil
	case ScopeCoordinatorPending:
		return port.ClaimQuery{
			CoordinatorDecisions: []entity.Decision{entity.DecisionUndecided},
		}, nil
	case ScopeManagerPending:
		return port.ClaimQuery{
			CoordinatorDecisions: []entity.Decision{entity.DecisionApproved},
			ManagerDecisions:     []entity.Decision{entity.DecisionUndecided},
		}, nil
	case ScopeReviewed:
		return port.ClaimQuery{
			CoordinatorDecisions: []entity.Decision{entity.DecisionApproved, entity.DecisionRejected},
			Order:                port.NewestFirst,
		}, nil
	}
	return port.ClaimQuery{}, fmt.Errorf("unknown report scope %q", s)
}

// ReportService renders claim listings as spreadsheets
type ReportService interface {
	ClaimsWorkbook(ctx context.Context, query port.ClaimQuery) ([]byte, error)
}

type reportServiceImpl struct {
	claimRepo    port.ClaimRepository
	lecturerRepo port.LecturerRepository
	logger       *zap.Logger
}

// NewReportService creates a new ReportService
func NewReportService(claimRepo port.ClaimRepository, lecturerRepo port.LecturerRepository, logger *zap.Logger) ReportService {
	return &reportServiceImpl{
		claimRepo:    claimRepo,
		lecturerRepo: lecturerRepo,
		logger:       logger,
	}
}

// ClaimsWorkbook writes one row per claim plus a grand total row
func (s *reportServiceImpl) ClaimsWorkbook(ctx context.Context, query port.ClaimQuery) ([]byte, error) {
	claims, err := s.claimRepo.ListClaimsByStage(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	lecturers, err := s.lecturerRepo.ListLecturers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list lecturers: %w", err)
	}
	byID := make(map[int64]*entity.Lecturer, len(lecturers))
	for _, l := range lecturers {
		byID[l.ID] = l
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(reportSheet, "A1", &reportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(reportHeaders))
	if err := f.SetCellStyle(reportSheet, "A1", lastCol+"1", bold); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for i, c := range claims {
		row := i + 2
		var name, email string
		if l, ok := byID[c.LecturerID]; ok {
			name, email = l.Name, l.Email
		}

		total, _ := c.Total().Float64()
		rate, _ := c.HourlyRate.Float64()
		values := []interface{}{
			c.ID, name, email, c.SubmittedAt.Format(reportDateLayout), c.HoursWorked, rate, total,
			c.Status, c.CoordinatorDecision.String(), c.ManagerDecision.String(), len(c.Documents), c.Notes,
		}

		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(reportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write claim %d at row %d: %w", c.ID, row, err)
		}
	}

	if len(claims) > 0 {
		totalRow := len(claims) + 2
		if err := f.SetCellValue(reportSheet, fmt.Sprintf("F%d", totalRow), "Grand total"); err != nil {
			return nil, fmt.Errorf("failed to write total label: %w", err)
		}
		formula := fmt.Sprintf("SUM(G2:G%d)", totalRow-1)
		if err := f.SetCellFormula(reportSheet, fmt.Sprintf("G%d", totalRow), formula); err != nil {
			return nil, fmt.Errorf("failed to write total formula: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}

	s.logger.Info("Claims report generated", zap.Int("claims", len(claims)), zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}
