package container

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/claim-approval/internal/application/service"
	"github.com/garyjia/claim-approval/internal/domain/entity"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "claims.db")
	cfg.Storage.Backend = "memory"
	cfg.Metrics.Namespace = "container_test"
	return cfg
}

func startContainer(t *testing.T, cfg *Config) *Container {
	t.Helper()
	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() {
		if !c.closed.Load() {
			_ = c.Close()
		}
	})
	return c
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Storage.Backend = "ftp"
	_, err = NewContainer(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported storage backend")
}

func TestContainer_Lifecycle(t *testing.T) {
	c := startContainer(t, testConfig(t))

	assert.True(t, c.Ready())
	assert.NotNil(t, c.ClaimService())
	assert.NotNil(t, c.Server())
	assert.NotNil(t, c.Metrics())
	assert.Len(t, c.Dispatcher().ListHandlers("claim.reviewed"), 1)

	health := c.Health(context.Background())
	assert.True(t, health.Overall)
	assert.True(t, health.Components["database"].Healthy)
	assert.True(t, health.Components["workers"].Healthy)
	assert.Equal(t, "handler count: 5", health.Components["dispatcher"].Message)
	assert.Equal(t, time.Hour, c.Config().Storage.SweepInterval)
	assert.Equal(t, 1, c.Workers().GetWorkerCount(), "memory store supports the orphan sweep")

	assert.Error(t, c.Start(context.Background()), "second start")
	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.False(t, c.Workers().IsRunning())
	assert.Error(t, c.Close(), "second close")
	assert.Error(t, c.Start(context.Background()), "start after close")
}

func TestContainer_MetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false
	c := startContainer(t, cfg)

	assert.Nil(t, c.Metrics())
	w := httptest.NewRecorder()
	c.Server().Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestContainer_LocalStorageBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "local"
	cfg.Storage.BaseDir = filepath.Join(t.TempDir(), "uploads")
	c := startContainer(t, cfg)

	require.NoError(t, c.BlobStore().Write(context.Background(), "k", strings.NewReader("v")))
	assert.True(t, c.BlobStore().Exists(context.Background(), "k"))
}

// Submit, verify, approve and download through the fully wired stack.
func TestContainer_EndToEnd(t *testing.T) {
	c := startContainer(t, testConfig(t))
	ctx := context.Background()
	claims := c.ClaimService()

	lecturer := claims.CreateLecturer(ctx, "Grace Hopper", "grace@uni.ac")
	require.True(t, lecturer.OK, lecturer.Message)

	dup := claims.CreateLecturer(ctx, "Grace Again", "GRACE@uni.ac")
	assert.Equal(t, service.KindValidation, dup.Kind)
	assert.Equal(t, service.MsgDuplicateEmail, dup.Message)

	content := []byte("%PDF-1.4 timesheet")
	submitted := claims.SubmitClaim(ctx, service.SubmitClaimRequest{
		LecturerID:  lecturer.Lecturer.ID,
		HoursWorked: 10,
		HourlyRate:  decimal.RequireFromString("50"),
		Files: []service.FileUpload{
			{Name: "timesheet.pdf", Size: int64(len(content)), Content: bytes.NewReader(content)},
		},
	})
	require.True(t, submitted.OK, submitted.Message)
	assert.Equal(t, 1, submitted.Attached)

	pending := claims.PendingForCoordinator(ctx)
	require.Len(t, pending.Claims, 1)
	require.Len(t, pending.Claims[0].Documents, 1)

	early := claims.ManagerApprove(ctx, submitted.ClaimID)
	assert.Equal(t, service.KindStateConflict, early.Kind)

	verified := claims.CoordinatorVerify(ctx, submitted.ClaimID)
	require.True(t, verified.OK, verified.Message)
	assert.Equal(t, "Claim #1 verified successfully!", verified.Message)

	approved := claims.ManagerApprove(ctx, submitted.ClaimID)
	require.True(t, approved.OK, approved.Message)
	assert.Equal(t, entity.DecisionApproved, approved.Claim.ManagerDecision)

	again := claims.ManagerReject(ctx, submitted.ClaimID)
	assert.Equal(t, service.KindStateConflict, again.Kind)

	file := claims.DownloadDocument(ctx, pending.Claims[0].Documents[0].ID)
	require.True(t, file.OK, file.Message)
	assert.Equal(t, content, file.File.Content)
	assert.Equal(t, "timesheet.pdf", file.File.FileName)
	assert.Equal(t, entity.ContentTypePDF, file.File.ContentType)

	assert.Empty(t, claims.PendingForManager(ctx).Claims)
	assert.Len(t, claims.HistoryForCoordinator(ctx).Claims, 1)

	w := httptest.NewRecorder()
	c.Server().Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `container_test_claim_reviews_total{action="manager_approve",outcome="success"} 1`)
	assert.Contains(t, body, `container_test_claims_submitted_total{partial="false"} 1`)
	assert.Contains(t, body, `container_test_lecturers_created_total 1`)
}

func TestContainer_SweepDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.SweepInterval = 0
	c := startContainer(t, cfg)

	assert.Zero(t, c.Workers().GetWorkerCount())
}
