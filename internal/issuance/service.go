// Package issuance runs the certificate issuance flow: validate, hash,
// render, upload, commit.
package issuance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adamscao/certvault/internal/config"
	"github.com/adamscao/certvault/internal/credential"
	"github.com/adamscao/certvault/internal/models"
	"github.com/adamscao/certvault/internal/policy"
	"github.com/adamscao/certvault/internal/registry"
	"github.com/adamscao/certvault/internal/render"
)

// IssueDateLayout is the display format of the issue date
const IssueDateLayout = "2 January 2006"

// maxIdentifierAttempts bounds identifier regeneration on collision
const maxIdentifierAttempts = 5

var (
	// ErrIssuanceInProgress is returned when the issuer already has an
	// issuance running
	ErrIssuanceInProgress = errors.New("an issuance is already in progress for this issuer")

	// ErrRenderFailed is returned when the document could not be rendered
	// or exported
	ErrRenderFailed = errors.New("certificate document could not be generated")

	// ErrIdentifierExhausted is returned when every generated identifier was
	// already issued
	ErrIdentifierExhausted = errors.New("could not allocate an unused certificate identifier")
)

// Draft holds the issuer-supplied certificate fields
type Draft struct {
	RecipientName  string                 `json:"recipientName"`
	RecipientEmail string                 `json:"recipientEmail"`
	ProgramName    string                 `json:"programName"`
	CompletionDate string                 `json:"completionDate"`
	IssueDate      string                 `json:"issueDate"`
	Type           models.CertificateType `json:"type"`
	Commendation   string                 `json:"commendation"`

	// CreatedAt is when the draft was started. IssueDate defaults to it.
	CreatedAt time.Time `json:"-"`
}

// Service issues certificates
type Service struct {
	config    *config.Config
	registry  registry.Registry
	validator *policy.Validator
	ids       *credential.IdentifierGenerator
	hasher    *credential.Hasher
	renderer  *render.Renderer
	exporter  render.Exporter
	delay     DelayFunc
	now       func() time.Time
	logger    *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Option customises a Service
type Option func(*Service)

// WithDelay replaces the stage delay strategy
func WithDelay(d DelayFunc) Option {
	return func(s *Service) { s.delay = d }
}

// WithIdentifierGenerator replaces the identifier generator
func WithIdentifierGenerator(g *credential.IdentifierGenerator) Option {
	return func(s *Service) { s.ids = g }
}

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an issuance service. Stage delays come from cfg unless
// replaced with WithDelay.
func NewService(cfg *config.Config, reg registry.Registry, exporter render.Exporter, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		config:    cfg,
		registry:  reg,
		validator: policy.NewValidator(cfg, reg),
		ids:       credential.NewIdentifierGenerator(nil, nil),
		hasher:    credential.NewHasher(cfg.Integrity.Secret),
		renderer:  render.NewRenderer(),
		exporter:  exporter,
		delay:     FixedDelays(StageDelays(cfg.StageDelays())),
		now:       time.Now,
		logger:    logger,
		inFlight:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Hasher returns the digest function records are issued with
func (s *Service) Hasher() *credential.Hasher {
	return s.hasher
}

// InProgress reports whether issuer has an issuance running
func (s *Service) InProgress(issuer string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[issuer]
	return ok
}

func (s *Service) acquire(issuer string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[issuer]; busy {
		return false
	}
	s.inFlight[issuer] = struct{}{}
	return true
}

func (s *Service) release(issuer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, issuer)
}

// Issue runs the issuance flow for draft on behalf of user. progress, if not
// nil, is called on every stage transition and finally with StageIdle.
//
// Cancelling ctx before the commit step discards the draft. The commit
// itself is not cancellable.
func (s *Service) Issue(ctx context.Context, user *models.User, draft Draft, progress ProgressFunc) (*models.CertificateRecord, error) {
	if progress == nil {
		progress = func(Stage) {}
	}

	if !s.acquire(user.Username) {
		return nil, ErrIssuanceInProgress
	}
	defer func() {
		s.release(user.Username)
		progress(StageIdle)
	}()

	log := s.logger.With(zap.String("issuer", user.Username))

	// Validating
	progress(StageValidating)
	if draft.Type == "" {
		if t, ok := policy.DefaultType(user.Role); ok {
			draft.Type = t
		}
	}
	draft.RecipientName = strings.TrimSpace(draft.RecipientName)
	draft.RecipientEmail = strings.TrimSpace(draft.RecipientEmail)
	draft.ProgramName = strings.TrimSpace(draft.ProgramName)
	draft.CompletionDate = strings.TrimSpace(draft.CompletionDate)

	if err := policy.ValidateFields(policy.Fields{
		RecipientName:  draft.RecipientName,
		RecipientEmail: draft.RecipientEmail,
		ProgramName:    draft.ProgramName,
		CompletionDate: draft.CompletionDate,
		Type:           draft.Type,
	}); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateIssuer(ctx, user, draft.Type); err != nil {
		return nil, err
	}

	// Hashing
	if err := s.enter(ctx, StageHashing, progress); err != nil {
		return nil, err
	}
	certID, err := s.allocateIdentifier(ctx)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("certificate_id", certID))

	now := s.now()
	rec := &models.CertificateRecord{
		ID:             uuid.NewString(),
		RecipientName:  draft.RecipientName,
		RecipientEmail: draft.RecipientEmail,
		ProgramName:    draft.ProgramName,
		CompletionDate: draft.CompletionDate,
		IssueDate:      issueDate(draft, now),
		Type:           draft.Type,
		Commendation:   strings.TrimSpace(draft.Commendation),
		Status:         models.StatusActive,
		Signatories:    append([]models.Signatory(nil), models.DefaultSignatories...),
		IssuerRole:     user.Role,
		IssuedBy:       user.Username,
	}
	s.bindIdentifier(rec, certID)

	// Rendering
	if err := s.enter(ctx, StageRendering, progress); err != nil {
		return nil, err
	}
	if err := s.renderDocument(ctx, rec); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Error("certificate rendering failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	// Simulated upload
	for _, stage := range UploadStages {
		if err := s.enter(ctx, stage, progress); err != nil {
			return nil, err
		}
		log.Debug("upload stage", zap.String("stage", string(stage)))
	}

	// Last point at which the draft can be discarded
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.commit(context.WithoutCancel(ctx), rec); err != nil {
		log.Error("failed to commit certificate", zap.Error(err))
		return nil, err
	}
	progress(StageCommitted)

	log.Info("certificate issued",
		zap.String("type", string(rec.Type)),
		zap.String("hash", rec.Hash))

	return rec, nil
}

// enter reports stage and waits out its delay
func (s *Service) enter(ctx context.Context, stage Stage, progress ProgressFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	progress(stage)
	return s.delay(ctx, stage)
}

// bindIdentifier sets the identifier and the digest and address derived
// from it
func (s *Service) bindIdentifier(rec *models.CertificateRecord, id string) {
	rec.CertificateID = id
	rec.Hash = s.hasher.Digest(credential.DigestInput{
		CertificateID:  rec.CertificateID,
		RecipientName:  rec.RecipientName,
		ProgramName:    rec.ProgramName,
		CompletionDate: rec.CompletionDate,
	})
	rec.CloudURL = s.config.CloudURL(id)
}

// commit appends rec. When another issuer took the identifier after it was
// allocated, rec is rebound to a fresh identifier, its document is
// rendered again and the append is retried.
func (s *Service) commit(ctx context.Context, rec *models.CertificateRecord) error {
	for attempt := 1; ; attempt++ {
		rec.Timestamp = s.now().UnixMilli()
		err := s.registry.Append(ctx, rec)
		if err == nil {
			return nil
		}
		if !errors.Is(err, registry.ErrDuplicateIdentifier) {
			return fmt.Errorf("failed to commit certificate: %w", err)
		}
		if attempt >= maxIdentifierAttempts {
			return ErrIdentifierExhausted
		}

		s.logger.Warn("identifier taken before commit, regenerating",
			zap.String("certificate_id", rec.CertificateID))

		id, err := s.allocateIdentifier(ctx)
		if err != nil {
			return err
		}
		s.bindIdentifier(rec, id)
		if err := s.renderDocument(ctx, rec); err != nil {
			return fmt.Errorf("%w: %v", ErrRenderFailed, err)
		}
	}
}

// allocateIdentifier generates identifiers until one is not yet issued
func (s *Service) allocateIdentifier(ctx context.Context) (string, error) {
	for i := 0; i < maxIdentifierAttempts; i++ {
		id := s.ids.Generate()
		_, err := s.registry.FindByIdentifier(ctx, id)
		if errors.Is(err, registry.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check identifier: %w", err)
		}
		s.logger.Warn("generated identifier already issued, regenerating", zap.String("certificate_id", id))
	}
	return "", ErrIdentifierExhausted
}

func (s *Service) renderDocument(ctx context.Context, rec *models.CertificateRecord) error {
	html, err := s.renderer.Render(rec, s.config.VerificationURL(rec.CertificateID))
	if err != nil {
		return err
	}

	if timeout := s.config.GetRenderTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	doc, err := s.exporter.Export(ctx, html)
	if err != nil {
		return err
	}

	rec.Document = doc
	rec.DocumentType = s.exporter.ContentType()
	return nil
}

func issueDate(d Draft, now time.Time) string {
	if s := strings.TrimSpace(d.IssueDate); s != "" {
		return s
	}
	if !d.CreatedAt.IsZero() {
		return d.CreatedAt.Format(IssueDateLayout)
	}
	return now.Format(IssueDateLayout)
}
