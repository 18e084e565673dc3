package issuance

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamscao/certvault/internal/config"
	"github.com/adamscao/certvault/internal/credential"
	"github.com/adamscao/certvault/internal/models"
	"github.com/adamscao/certvault/internal/policy"
	"github.com/adamscao/certvault/internal/registry"
	"github.com/adamscao/certvault/internal/registry/registrytest"
	"github.com/adamscao/certvault/internal/render"
)

var hexDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

type failingExporter struct{}

func (failingExporter) Export(context.Context, []byte) ([]byte, error) {
	return nil, errors.New("surface could not be captured")
}

func (failingExporter) ContentType() string { return "application/pdf" }

func therapist() *models.User {
	return &models.User{Username: "meera", Role: models.RoleTherapist, Enabled: true}
}

func ashaDraft() Draft {
	return Draft{
		RecipientName:  "Asha Rao",
		RecipientEmail: "asha@x.com",
		ProgramName:    "Mindful Leadership",
		CompletionDate: "2025-01-15",
		Type:           models.TypeTherapistTraining,
	}
}

func newTestService(t *testing.T, opts ...Option) (*Service, *registry.MemoryRegistry) {
	t.Helper()
	reg := registry.NewMemoryRegistry()
	opts = append([]Option{WithDelay(NoDelay)}, opts...)
	return NewService(config.Default(), reg, render.HTMLExporter{}, nil, opts...), reg
}

// scriptedIntN returns the given values in order, repeating the last one
func scriptedIntN(values ...int) func(int) int {
	var mu sync.Mutex
	i := 0
	return func(int) int {
		mu.Lock()
		defer mu.Unlock()
		v := values[i]
		if i < len(values)-1 {
			i++
		}
		return v
	}
}

func TestIssue_AshaRao(t *testing.T) {
	svc, reg := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Issue(ctx, therapist(), ashaDraft(), nil)
	require.NoError(t, err)

	assert.True(t, credential.ValidIdentifier(rec.CertificateID))
	assert.Regexp(t, hexDigest, rec.Hash)
	assert.Equal(t, models.StatusActive, rec.Status)
	assert.Equal(t, models.RoleTherapist, rec.IssuerRole)
	assert.Equal(t, "meera", rec.IssuedBy)
	assert.Len(t, rec.Signatories, models.MaxSignatories)
	assert.NotEmpty(t, rec.ID)
	assert.NotEmpty(t, rec.Document)
	assert.Equal(t, "text/html; charset=utf-8", rec.DocumentType)
	assert.Equal(t, config.Default().CloudURL(rec.CertificateID), rec.CloudURL)
	assert.Equal(t, 1, reg.Len())

	result, err := registry.NewVerifier(reg, svc.Hasher()).Verify(ctx, rec.CertificateID)
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.True(t, result.IntegrityOK)
	assert.Equal(t, "Asha Rao", result.Record.RecipientName)
}

func TestIssue_EmptyNameRejected(t *testing.T) {
	svc, reg := newTestService(t)
	draft := ashaDraft()
	draft.RecipientName = ""

	var stages []Stage
	_, err := svc.Issue(context.Background(), therapist(), draft, func(s Stage) { stages = append(stages, s) })

	var vErr *policy.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "recipientName", vErr.Fields[0].Field)
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, []Stage{StageValidating, StageIdle}, stages)
	assert.False(t, svc.InProgress("meera"))
}

func TestIssue_IdenticalDraftsGetDistinctIdentity(t *testing.T) {
	svc, reg := newTestService(t)
	ctx := context.Background()

	first, err := svc.Issue(ctx, therapist(), ashaDraft(), nil)
	require.NoError(t, err)
	second, err := svc.Issue(ctx, therapist(), ashaDraft(), nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.CertificateID, second.CertificateID)
	assert.NotEqual(t, first.Hash, second.Hash)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, reg.Len())
}

func TestIssue_StageOrder(t *testing.T) {
	var delayed []Stage
	delay := func(ctx context.Context, s Stage) error {
		delayed = append(delayed, s)
		return ctx.Err()
	}
	svc, _ := newTestService(t, WithDelay(delay))

	var stages []Stage
	_, err := svc.Issue(context.Background(), therapist(), ashaDraft(), func(s Stage) { stages = append(stages, s) })
	require.NoError(t, err)

	assert.Equal(t, []Stage{
		StageValidating,
		StageHashing,
		StageRendering,
		StageUploadInit,
		StageUploadConnect,
		StageUpload,
		StageUploadFinalize,
		StageCommitted,
		StageIdle,
	}, stages)
	assert.Equal(t, []Stage{
		StageHashing,
		StageRendering,
		StageUploadInit,
		StageUploadConnect,
		StageUpload,
		StageUploadFinalize,
	}, delayed)
}

func TestIssue_InFlightGuard(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	var first sync.Once
	delay := func(ctx context.Context, s Stage) error {
		if s == StageUpload {
			// Only the first issuance to reach the upload parks here.
			first.Do(func() {
				close(entered)
				<-unblock
			})
		}
		return ctx.Err()
	}
	svc, reg := newTestService(t, WithDelay(delay))
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Issue(ctx, therapist(), ashaDraft(), nil)
		done <- err
	}()

	<-entered
	assert.True(t, svc.InProgress("meera"))

	_, err := svc.Issue(ctx, therapist(), ashaDraft(), nil)
	assert.ErrorIs(t, err, ErrIssuanceInProgress)

	// Other issuers are not held up by meera's draft.
	coach := &models.User{Username: "arjun", Role: models.RoleCoach, Enabled: true}
	coachDraft := ashaDraft()
	coachDraft.Type = models.TypeCoachTraining
	_, err = svc.Issue(ctx, coach, coachDraft, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())

	close(unblock)
	require.NoError(t, <-done)
	assert.False(t, svc.InProgress("meera"))
	assert.Equal(t, 2, reg.Len())

	// The guard is released once the first issuance finishes.
	_, err = svc.Issue(ctx, therapist(), ashaDraft(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Len())
}

func TestIssue_CancelBeforeCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	delay := func(ctx context.Context, s Stage) error {
		if s == StageUploadFinalize {
			cancel()
		}
		return ctx.Err()
	}
	svc, reg := newTestService(t, WithDelay(delay))

	var stages []Stage
	_, err := svc.Issue(ctx, therapist(), ashaDraft(), func(s Stage) { stages = append(stages, s) })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, reg.Len())
	assert.NotContains(t, stages, StageCommitted)
	assert.Equal(t, StageIdle, stages[len(stages)-1])
	assert.False(t, svc.InProgress("meera"))
}

func TestIssue_RenderFailure(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	svc := NewService(config.Default(), reg, failingExporter{}, nil, WithDelay(NoDelay))

	var stages []Stage
	_, err := svc.Issue(context.Background(), therapist(), ashaDraft(), func(s Stage) { stages = append(stages, s) })
	assert.ErrorIs(t, err, ErrRenderFailed)
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, []Stage{StageValidating, StageHashing, StageRendering, StageIdle}, stages)
}

func TestIssue_RoleNotPermitted(t *testing.T) {
	svc, reg := newTestService(t)
	coach := &models.User{Username: "arjun", Role: models.RoleCoach, Enabled: true}

	_, err := svc.Issue(context.Background(), coach, ashaDraft(), nil)
	assert.ErrorIs(t, err, policy.ErrNotPermitted)
	assert.Equal(t, 0, reg.Len())
}

func TestIssue_DefaultsTypeFromRole(t *testing.T) {
	svc, _ := newTestService(t)
	coach := &models.User{Username: "arjun", Role: models.RoleCoach, Enabled: true}
	draft := ashaDraft()
	draft.Type = ""

	rec, err := svc.Issue(context.Background(), coach, draft, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TypeCoachTraining, rec.Type)
	assert.Equal(t, models.RoleCoach, rec.IssuerRole)
}

func TestIssue_RegeneratesCollidingIdentifier(t *testing.T) {
	clock := func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }
	ids := credential.NewIdentifierGenerator(clock, scriptedIntN(123, 123, 456))
	svc, reg := newTestService(t, WithIdentifierGenerator(ids), WithClock(clock))
	ctx := context.Background()

	require.NoError(t, reg.Append(ctx, registrytest.Record("MANAS360-CERT-2025-000123", "other", models.RoleCoach, clock())))

	rec, err := svc.Issue(ctx, therapist(), ashaDraft(), nil)
	require.NoError(t, err)
	assert.Equal(t, "MANAS360-CERT-2025-000456", rec.CertificateID)
	assert.Equal(t, clock().UnixMilli(), rec.Timestamp)
}

func TestIssue_IdentifierSpaceExhausted(t *testing.T) {
	clock := func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }
	ids := credential.NewIdentifierGenerator(clock, scriptedIntN(123))
	svc, reg := newTestService(t, WithIdentifierGenerator(ids))
	ctx := context.Background()

	require.NoError(t, reg.Append(ctx, registrytest.Record("MANAS360-CERT-2025-000123", "other", models.RoleCoach, clock())))

	_, err := svc.Issue(ctx, therapist(), ashaDraft(), nil)
	assert.ErrorIs(t, err, ErrIdentifierExhausted)
	assert.Equal(t, 1, reg.Len())
}

func TestIssue_IssueDateDefaultsToDraftCreation(t *testing.T) {
	svc, _ := newTestService(t)
	draft := ashaDraft()
	draft.CreatedAt = time.Date(2025, 1, 2, 18, 30, 0, 0, time.UTC)

	rec, err := svc.Issue(context.Background(), therapist(), draft, nil)
	require.NoError(t, err)
	assert.Equal(t, "2 January 2025", rec.IssueDate)

	draft.IssueDate = "5 January 2025"
	rec, err = svc.Issue(context.Background(), therapist(), draft, nil)
	require.NoError(t, err)
	assert.Equal(t, "5 January 2025", rec.IssueDate)
}

func TestFixedDelays(t *testing.T) {
	delay := FixedDelays(map[Stage]time.Duration{StageUpload: time.Hour})

	require.NoError(t, delay(context.Background(), StageUploadInit))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, delay(ctx, StageUpload), context.DeadlineExceeded)
}

func TestStageDelays(t *testing.T) {
	d := StageDelays(config.Default().StageDelays())
	assert.Equal(t, 800*time.Millisecond, d[StageRendering])
	assert.Equal(t, 500*time.Millisecond, d[StageUploadInit])
	assert.Equal(t, 400*time.Millisecond, d[StageUploadFinalize])
	assert.Zero(t, d[StageHashing])
}

func TestStage_Message(t *testing.T) {
	for _, s := range append([]Stage{StageValidating, StageHashing, StageRendering, StageCommitted}, UploadStages...) {
		assert.NotEmpty(t, s.Message(), s)
	}
	assert.Empty(t, StageIdle.Message())
}

// racingRegistry lets another issuer commit the same identifier just before
// the first append
type racingRegistry struct {
	*registry.MemoryRegistry
	raced bool
}

func (r *racingRegistry) Append(ctx context.Context, rec *models.CertificateRecord) error {
	if !r.raced {
		r.raced = true
		competing := registrytest.Record(rec.CertificateID, "other", models.RoleCoach, time.Now())
		if err := r.MemoryRegistry.Append(ctx, competing); err != nil {
			return err
		}
	}
	return r.MemoryRegistry.Append(ctx, rec)
}

func TestIssue_RegeneratesIdentifierTakenBeforeCommit(t *testing.T) {
	clock := func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }
	ids := credential.NewIdentifierGenerator(clock, scriptedIntN(123, 123, 456))
	reg := &racingRegistry{MemoryRegistry: registry.NewMemoryRegistry()}
	cfg := config.Default()
	svc := NewService(cfg, reg, render.HTMLExporter{}, nil,
		WithDelay(NoDelay), WithIdentifierGenerator(ids), WithClock(clock))

	rec, err := svc.Issue(context.Background(), therapist(), ashaDraft(), nil)
	require.NoError(t, err)
	assert.Equal(t, "MANAS360-CERT-2025-000456", rec.CertificateID)
	assert.Equal(t, 2, reg.Len())

	// Everything derived from the identifier follows the new one.
	assert.Equal(t, svc.Hasher().Digest(credential.DigestInput{
		CertificateID:  rec.CertificateID,
		RecipientName:  rec.RecipientName,
		ProgramName:    rec.ProgramName,
		CompletionDate: rec.CompletionDate,
	}), rec.Hash)
	assert.Equal(t, cfg.CloudURL(rec.CertificateID), rec.CloudURL)
	assert.Contains(t, string(rec.Document), "MANAS360-CERT-2025-000456")
	assert.NotContains(t, string(rec.Document), "MANAS360-CERT-2025-000123")

	stored, err := reg.FindByIdentifier(context.Background(), "MANAS360-CERT-2025-000456")
	require.NoError(t, err)
	assert.Equal(t, rec.Hash, stored.Hash)
}

func TestIssue_DuplicateAtCommitExhausts(t *testing.T) {
	clock := func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }
	reg := &alwaysTakenRegistry{MemoryRegistry: registry.NewMemoryRegistry()}
	svc := NewService(config.Default(), reg, render.HTMLExporter{}, nil,
		WithDelay(NoDelay), WithClock(clock))

	_, err := svc.Issue(context.Background(), therapist(), ashaDraft(), nil)
	assert.ErrorIs(t, err, ErrIdentifierExhausted)
	assert.Equal(t, maxIdentifierAttempts, reg.appends)
	assert.Equal(t, 0, reg.Len())
}

// alwaysTakenRegistry rejects every append as a duplicate
type alwaysTakenRegistry struct {
	*registry.MemoryRegistry
	appends int
}

func (r *alwaysTakenRegistry) Append(context.Context, *models.CertificateRecord) error {
	r.appends++
	return registry.ErrDuplicateIdentifier
}
