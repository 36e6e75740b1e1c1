package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/garyjia/claim-approval/internal/application/port"
	"github.com/garyjia/claim-approval/internal/domain/entity"
)

// memClaimRepo is an in-memory port.ClaimRepository with the same
// version-conditional SaveClaim as the SQLite repository. The *Func fields
// override individual methods to inject failures.
type memClaimRepo struct {
	mu     sync.Mutex
	claims map[int64]*entity.Claim
	docs   map[int64]*entity.SupportingDocument
	nextID int64

	createClaimFunc    func(ctx context.Context, claim *entity.Claim) error
	findClaimFunc      func(ctx context.Context, id int64) (*entity.Claim, error)
	saveClaimFunc      func(ctx context.Context, claim *entity.Claim) error
	createDocumentFunc func(ctx context.Context, doc *entity.SupportingDocument) error
	listByStageFunc    func(ctx context.Context, q port.ClaimQuery) ([]*entity.Claim, error)
}

func newMemClaimRepo() *memClaimRepo {
	return &memClaimRepo{
		claims: make(map[int64]*entity.Claim),
		docs:   make(map[int64]*entity.SupportingDocument),
	}
}

func (m *memClaimRepo) CreateClaim(ctx context.Context, claim *entity.Claim) error {
	if m.createClaimFunc != nil {
		return m.createClaimFunc(ctx, claim)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	claim.ID = m.nextID
	claim.Version = 1
	cp := *claim
	cp.Documents = nil
	m.claims[claim.ID] = &cp
	return nil
}

func (m *memClaimRepo) FindClaim(ctx context.Context, id int64) (*entity.Claim, error) {
	if m.findClaimFunc != nil {
		return m.findClaimFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return nil, fmt.Errorf("claim %d: %w", id, entity.ErrNotFound)
	}
	return m.withDocs(c), nil
}

func (m *memClaimRepo) SaveClaim(ctx context.Context, claim *entity.Claim) error {
	if m.saveClaimFunc != nil {
		return m.saveClaimFunc(ctx, claim)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.claims[claim.ID]
	if !ok {
		return fmt.Errorf("claim %d: %w", claim.ID, entity.ErrNotFound)
	}
	if stored.Version != claim.Version {
		return fmt.Errorf("claim %d: %w", claim.ID, entity.ErrStaleClaim)
	}
	stored.Status = claim.Status
	stored.CoordinatorDecision = claim.CoordinatorDecision
	stored.ManagerDecision = claim.ManagerDecision
	stored.Version++
	claim.Version = stored.Version
	return nil
}

func (m *memClaimRepo) DeleteClaim(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.claims[id]; !ok {
		return fmt.Errorf("claim %d: %w", id, entity.ErrNotFound)
	}
	delete(m.claims, id)
	for docID, d := range m.docs {
		if d.ClaimID == id {
			delete(m.docs, docID)
		}
	}
	return nil
}

func (m *memClaimRepo) ListClaimsByLecturer(ctx context.Context, lecturerID int64) ([]*entity.Claim, error) {
	return m.ListClaimsByStage(ctx, port.ClaimQuery{LecturerID: lecturerID, Order: port.NewestFirst})
}

func (m *memClaimRepo) ListClaimsByStage(ctx context.Context, q port.ClaimQuery) ([]*entity.Claim, error) {
	if m.listByStageFunc != nil {
		return m.listByStageFunc(ctx, q)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	in := func(d entity.Decision, set []entity.Decision) bool {
		if len(set) == 0 {
			return true
		}
		for _, s := range set {
			if s == d {
				return true
			}
		}
		return false
	}

	var out []*entity.Claim
	for _, c := range m.claims {
		if !in(c.CoordinatorDecision, q.CoordinatorDecisions) || !in(c.ManagerDecision, q.ManagerDecisions) {
			continue
		}
		if q.LecturerID != 0 && c.LecturerID != q.LecturerID {
			continue
		}
		out = append(out, m.withDocs(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if q.Order == port.NewestFirst {
			return out[i].SubmittedAt.After(out[j].SubmittedAt) ||
				(out[i].SubmittedAt.Equal(out[j].SubmittedAt) && out[i].ID > out[j].ID)
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt) ||
			(out[i].SubmittedAt.Equal(out[j].SubmittedAt) && out[i].ID < out[j].ID)
	})
	return out, nil
}

func (m *memClaimRepo) CreateDocument(ctx context.Context, doc *entity.SupportingDocument) error {
	if m.createDocumentFunc != nil {
		return m.createDocumentFunc(ctx, doc)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.claims[doc.ClaimID]; !ok {
		return fmt.Errorf("FOREIGN KEY constraint failed")
	}
	m.nextID++
	doc.ID = m.nextID
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *memClaimRepo) FindDocument(ctx context.Context, id int64) (*entity.SupportingDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %d: %w", id, entity.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

func (m *memClaimRepo) ListDocumentsByClaim(ctx context.Context, claimID int64) ([]*entity.SupportingDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docsOf(claimID), nil
}

func (m *memClaimRepo) withDocs(c *entity.Claim) *entity.Claim {
	cp := *c
	cp.Documents = m.docsOf(c.ID)
	return &cp
}

func (m *memClaimRepo) docsOf(claimID int64) []*entity.SupportingDocument {
	var docs []*entity.SupportingDocument
	for _, d := range m.docs {
		if d.ClaimID == claimID {
			cp := *d
			docs = append(docs, &cp)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

func (m *memClaimRepo) claimCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.claims)
}

func (m *memClaimRepo) docCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

type memLecturerRepo struct {
	mu        sync.Mutex
	lecturers []*entity.Lecturer

	createFunc func(ctx context.Context, l *entity.Lecturer) error
	findFunc   func(ctx context.Context, id int64) (*entity.Lecturer, error)
	listFunc   func(ctx context.Context) ([]*entity.Lecturer, error)
}

func (m *memLecturerRepo) CreateLecturer(ctx context.Context, l *entity.Lecturer) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, l)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.lecturers {
		if strings.EqualFold(existing.Email, l.Email) {
			return port.ErrDuplicate
		}
	}
	l.ID = int64(len(m.lecturers) + 1)
	cp := *l
	m.lecturers = append(m.lecturers, &cp)
	return nil
}

func (m *memLecturerRepo) FindLecturer(ctx context.Context, id int64) (*entity.Lecturer, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lecturers {
		if l.ID == id {
			cp := *l
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("lecturer %d: %w", id, entity.ErrNotFound)
}

func (m *memLecturerRepo) FindLecturerByEmail(ctx context.Context, email string) (*entity.Lecturer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lecturers {
		if strings.EqualFold(l.Email, email) {
			cp := *l
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("lecturer %q: %w", email, entity.ErrNotFound)
}

func (m *memLecturerRepo) ListLecturers(ctx context.Context) ([]*entity.Lecturer, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entity.Lecturer(nil), m.lecturers...), nil
}

type passthroughTx struct{}

func (passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var (
	_ port.ClaimRepository    = (*memClaimRepo)(nil)
	_ port.LecturerRepository = (*memLecturerRepo)(nil)
)
