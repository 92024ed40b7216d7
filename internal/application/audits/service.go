package audits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/profixion/internal/application"
	"github.com/bryanwahyu/profixion/internal/domain/ai"
	domain "github.com/bryanwahyu/profixion/internal/domain/audits"
	"github.com/bryanwahyu/profixion/internal/domain/failures"
	"github.com/bryanwahyu/profixion/internal/domain/payments"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultCollaboratorTimeout = 30 * time.Second
	DefaultCompletionLease     = 2 * time.Minute
)

// Config holds the knobs of the audit use-cases.
type Config struct {
	// CallbackURL is handed to the scraper so it knows where to deliver.
	CallbackURL         string
	AllowedHosts        []string
	CollaboratorTimeout time.Duration
	CompletionLease     time.Duration
	RequirePayment      bool
}

// PaymentVerifier checks a checkout confirmation before submission.
type PaymentVerifier interface {
	Verify(orderID, paymentID, signature string) bool
}

// Events receives lifecycle notifications, e.g. for metrics.
type Events interface {
	AuditSubmitted()
	AuditDeduplicated()
	AuditCompleted()
	AuditFailed()
	DuplicateCallback()
}

type noEvents struct{}

func (noEvents) AuditSubmitted()    {}
func (noEvents) AuditDeduplicated() {}
func (noEvents) AuditCompleted()    {}
func (noEvents) AuditFailed()       {}
func (noEvents) DuplicateCallback() {}

// Service implements the audit use-cases.
// Service is safe for concurrent use; all coordination happens in Repo.
type Service struct {
	Repo      domain.Repository
	Scraper   domain.Scraper
	Analyzer  ai.Client
	Failures  failures.Repository // optional
	Payments  PaymentVerifier     // required when Config.RequirePayment
	Renderer  domain.Renderer
	Documents domain.DocumentStore
	Clock     application.Clock
	Events    Events
	Logger    *zap.Logger
	Config    Config
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now()
}

func (s *Service) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Service) events() Events {
	if s.Events == nil {
		return noEvents{}
	}
	return s.Events
}

func (s *Service) timeout() time.Duration {
	if s.Config.CollaboratorTimeout <= 0 {
		return DefaultCollaboratorTimeout
	}
	return s.Config.CollaboratorTimeout
}

func (s *Service) lease() time.Duration {
	if s.Config.CompletionLease <= 0 {
		return DefaultCompletionLease
	}
	return s.Config.CompletionLease
}

func (s *Service) allowedHosts() []string {
	if len(s.Config.AllowedHosts) == 0 {
		return domain.DefaultProfileHosts
	}
	return s.Config.AllowedHosts
}

// NewTrackingID returns a fresh caller-facing tracking id.
func NewTrackingID() string {
	return domain.TrackingIDPrefix + uuid.NewString()
}

//
// ==== SUBMIT ====
//

// SubmitCommand untuk mulai audit
type SubmitCommand struct {
	ProfileURL  string
	RequesterID string
	Payment     *payments.Confirmation
}

type SubmitResult struct {
	TrackingID string `json:"trackingId"`
	Existing   bool   `json:"existing"`
}

// Submit validates the request, claims a running record and triggers the
// scrape. A running audit for the same requester and profile is returned
// instead of triggering a second scrape.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (SubmitResult, error) {
	requester := strings.TrimSpace(cmd.RequesterID)
	if requester == "" {
		return SubmitResult{}, fmt.Errorf("%w: requesterId is required", domain.ErrValidation)
	}
	profileURL, err := domain.NormalizeProfileURL(cmd.ProfileURL, s.allowedHosts())
	if err != nil {
		return SubmitResult{}, err
	}
	if s.Config.RequirePayment {
		if err := s.checkPayment(cmd.Payment); err != nil {
			return SubmitResult{}, err
		}
	}

	now := s.now()
	rec := &domain.Record{
		ID:          domain.RecordID(uuid.NewString()),
		TrackingID:  NewTrackingID(),
		RequesterID: requester,
		ProfileURL:  profileURL,
		Status:      domain.StatusRunning,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	existing, created, err := s.Repo.CreateRunning(ctx, rec)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("create audit: %w", err)
	}
	if !created {
		s.events().AuditDeduplicated()
		s.log().Info("audit already running",
			zap.String("tracking_id", existing.TrackingID),
			zap.String("requester_id", requester),
			zap.String("profile_url", profileURL))
		return SubmitResult{TrackingID: existing.TrackingID, Existing: true}, nil
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout())
	jobID, err := s.Scraper.Trigger(tctx, profileURL, s.Config.CallbackURL)
	cancel()
	if err != nil {
		// claim dibuang supaya tidak ada record setengah jadi
		if derr := s.Repo.DeleteClaim(context.WithoutCancel(ctx), rec.ID); derr != nil {
			s.log().Error("drop audit claim after trigger failure",
				zap.String("tracking_id", rec.TrackingID), zap.Error(derr))
		}
		s.log().Warn("scrape trigger failed",
			zap.String("profile_url", profileURL), zap.Error(err))
		return SubmitResult{}, fmt.Errorf("%w: trigger scrape: %v", domain.ErrCollaborator, err)
	}

	if jobID != "" {
		s.storeJobID(context.WithoutCancel(ctx), rec, jobID)
	}

	s.events().AuditSubmitted()
	s.log().Info("audit submitted",
		zap.String("tracking_id", rec.TrackingID),
		zap.String("job_id", jobID),
		zap.String("profile_url", profileURL))
	return SubmitResult{TrackingID: rec.TrackingID}, nil
}

// storeJobID tries the write twice. The scrape is already running, so a
// lost job id is logged as a failure instead of failing the submission;
// array deliveries still correlate by profile URL.
func (s *Service) storeJobID(ctx context.Context, rec *domain.Record, jobID string) {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if err = s.Repo.SetExternalJobID(ctx, rec.ID, jobID); err == nil {
			return
		}
	}
	s.log().Error("store external job id",
		zap.String("tracking_id", rec.TrackingID),
		zap.String("job_id", jobID), zap.Error(err))
	s.recordFailure(ctx, rec, jobID, failures.PhasePersist, "store external job id: "+err.Error(), nil)
}

func (s *Service) checkPayment(c *payments.Confirmation) error {
	if c == nil || !c.Complete() {
		return fmt.Errorf("%w: payment confirmation is required", domain.ErrValidation)
	}
	if s.Payments == nil || !s.Payments.Verify(c.OrderID, c.PaymentID, c.Signature) {
		return fmt.Errorf("%w: %v", domain.ErrValidation, payments.ErrInvalidSignature)
	}
	return nil
}

//
// ==== WEBHOOK ====
//

// Outcome of one delivery.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeReady     Outcome = "ready"
	OutcomeFailed    Outcome = "failed"
)

// WebhookResult summarises a processed callback.
type WebhookResult struct {
	Outcomes []Outcome `json:"outcomes"`
}

// HandleWebhook processes a provider callback body. Unmatched and duplicate
// deliveries are acknowledged without side effects. The errors are
// ErrValidation for an unparseable body, ErrInFlight while another delivery
// holds the completion claim, and store errors; the last two ask the
// provider to retry.
func (s *Service) HandleWebhook(ctx context.Context, body []byte) (WebhookResult, error) {
	deliveries, err := ParseWebhook(body)
	if err != nil {
		return WebhookResult{}, err
	}
	res := WebhookResult{Outcomes: make([]Outcome, 0, len(deliveries))}
	for _, d := range deliveries {
		out, err := s.deliver(ctx, d)
		if err != nil {
			return res, err
		}
		res.Outcomes = append(res.Outcomes, out)
	}
	return res, nil
}

func (s *Service) correlate(ctx context.Context, d Delivery) (*domain.Record, error) {
	if d.JobID != "" {
		rec, err := s.Repo.FindByExternalJobID(ctx, d.JobID)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	if d.ProfileURL != "" {
		return s.Repo.FindRunningByProfileURL(ctx, d.ProfileURL)
	}
	return nil, domain.ErrNotFound
}

func (s *Service) deliver(ctx context.Context, d Delivery) (Outcome, error) {
	logger := s.log().With(zap.String("job_id", d.JobID), zap.String("profile_url", d.ProfileURL))

	rec, err := s.correlate(ctx, d)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Info("webhook matched no audit")
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", fmt.Errorf("correlate webhook: %w", err)
	}
	logger = logger.With(zap.String("tracking_id", rec.TrackingID))

	if rec.Status.Terminal() {
		s.events().DuplicateCallback()
		logger.Info("duplicate webhook", zap.String("status", string(rec.Status)))
		return OutcomeDuplicate, nil
	}
	claimed, err := s.Repo.Claim(ctx, rec.ID, s.now(), s.lease())
	if err != nil {
		return "", fmt.Errorf("claim audit: %w", err)
	}
	if !claimed {
		return s.unclaimed(ctx, rec, logger)
	}

	jobID := d.JobID
	if jobID == "" {
		jobID = rec.ExternalJobID
	}

	if d.ProviderError != "" {
		return s.fail(ctx, rec, jobID, failures.PhaseProvider, "provider error: "+d.ProviderError, d.Profile)
	}
	if d.NeedsFetch() && d.ProviderStatus != providerStatusReady {
		return s.fail(ctx, rec, jobID, failures.PhaseProvider, "provider reported status "+d.ProviderStatus, nil)
	}

	profile := d.Profile
	if d.NeedsFetch() {
		fctx, cancel := context.WithTimeout(ctx, s.timeout())
		snapshot, err := s.Scraper.FetchSnapshot(fctx, jobID)
		cancel()
		if err != nil {
			return s.fail(ctx, rec, jobID, failures.PhaseSnapshot, "fetch snapshot: "+err.Error(), nil)
		}
		item, err := firstProfile(snapshot)
		if err != nil {
			return s.fail(ctx, rec, jobID, failures.PhaseSnapshot, err.Error(), snapshot)
		}
		if item.ProviderError != "" {
			return s.fail(ctx, rec, jobID, failures.PhaseProvider, "provider error: "+item.ProviderError, item.Profile)
		}
		profile = item.Profile
	}

	actx, cancel := context.WithTimeout(ctx, s.timeout())
	analysis, err := s.Analyzer.Analyze(actx, profile)
	cancel()
	if err != nil {
		return s.fail(ctx, rec, jobID, failures.PhaseAnalyze, "analysis: "+err.Error(), nil)
	}

	analysis = analysis.Sanitize()
	if analysis.URL == "" {
		analysis.URL = rec.ProfileURL
	}
	raw, err := json.Marshal(analysis)
	if err != nil {
		return s.fail(ctx, rec, jobID, failures.PhasePersist, "encode analysis: "+err.Error(), nil)
	}
	ok, err := s.Repo.Complete(ctx, rec.ID, raw, s.now())
	if err != nil {
		s.recordFailure(ctx, rec, jobID, failures.PhasePersist, err.Error(), nil)
		s.releaseClaim(ctx, rec)
		return "", fmt.Errorf("complete audit: %w", err)
	}
	if !ok {
		s.events().DuplicateCallback()
		logger.Info("audit completed concurrently")
		return OutcomeDuplicate, nil
	}
	s.events().AuditCompleted()
	logger.Info("audit ready", zap.Float64("overall_score", analysis.OverallScore))
	return OutcomeReady, nil
}

func (s *Service) fail(ctx context.Context, rec *domain.Record, jobID string, phase failures.Phase, reason string, details json.RawMessage) (Outcome, error) {
	s.recordFailure(ctx, rec, jobID, phase, reason, details)
	ok, err := s.Repo.Fail(ctx, rec.ID, reason, s.now())
	if err != nil {
		s.releaseClaim(ctx, rec)
		return "", fmt.Errorf("fail audit: %w", err)
	}
	if !ok {
		s.events().DuplicateCallback()
		return OutcomeDuplicate, nil
	}
	s.events().AuditFailed()
	s.log().Warn("audit failed",
		zap.String("tracking_id", rec.TrackingID),
		zap.String("phase", string(phase)),
		zap.String("reason", reason))
	return OutcomeFailed, nil
}

// unclaimed sorts a lost claim into a finished audit, which is a duplicate,
// and one still being completed elsewhere. The latter returns ErrInFlight
// so the provider keeps retrying until the holder finishes or its lease
// lapses.
func (s *Service) unclaimed(ctx context.Context, rec *domain.Record, logger *zap.Logger) (Outcome, error) {
	current, err := s.Repo.GetByTrackingID(ctx, rec.TrackingID)
	if err != nil {
		return "", fmt.Errorf("reload audit: %w", err)
	}
	if current.Status.Terminal() {
		s.events().DuplicateCallback()
		logger.Info("audit completed concurrently", zap.String("status", string(current.Status)))
		return OutcomeDuplicate, nil
	}
	logger.Info("webhook lost completion claim")
	return "", fmt.Errorf("%w: audit %s", domain.ErrInFlight, rec.TrackingID)
}

// releaseClaim lets the next delivery retry at once instead of waiting out
// the lease.
func (s *Service) releaseClaim(ctx context.Context, rec *domain.Record) {
	if err := s.Repo.ReleaseClaim(context.WithoutCancel(ctx), rec.ID); err != nil {
		s.log().Error("release audit claim", zap.String("tracking_id", rec.TrackingID), zap.Error(err))
	}
}

// recordFailure is best effort; the failure log never blocks a transition.
func (s *Service) recordFailure(ctx context.Context, rec *domain.Record, jobID string, phase failures.Phase, msg string, details json.RawMessage) {
	if s.Failures == nil {
		return
	}
	f := &failures.Failure{
		TrackingID:  rec.TrackingID,
		JobID:       jobID,
		Phase:       phase,
		Message:     msg,
		DetailsJSON: string(details),
		CreatedAt:   s.now(),
	}
	if err := s.Failures.Save(ctx, f); err != nil {
		s.log().Error("save audit failure", zap.String("tracking_id", rec.TrackingID), zap.Error(err))
	}
}

//
// ==== QUERIES ====
//

// StatusView is what callers see when polling.
type StatusView struct {
	TrackingID     string                 `json:"trackingId"`
	Status         domain.Status          `json:"status"`
	ProfileURL     string                 `json:"profileUrl"`
	AnalysisResult *domain.AnalysisResult `json:"analysisResult,omitempty"`
	FailureReason  string                 `json:"failureReason,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
}

// Status looks up an audit by tracking id. A ready record whose stored
// analysis does not decode returns ErrCorruptedData.
func (s *Service) Status(ctx context.Context, trackingID string) (StatusView, error) {
	rec, err := s.Repo.GetByTrackingID(ctx, trackingID)
	if err != nil {
		return StatusView{}, err
	}
	analysis, err := rec.Analysis()
	if err != nil {
		return StatusView{}, err
	}
	return StatusView{
		TrackingID:     rec.TrackingID,
		Status:         rec.Status,
		ProfileURL:     rec.ProfileURL,
		AnalysisResult: analysis,
		FailureReason:  rec.FailureReason,
		CreatedAt:      rec.CreatedAt,
	}, nil
}

// Results returns the analysis of a ready audit, ErrNotReady otherwise.
func (s *Service) Results(ctx context.Context, trackingID string) (*domain.AnalysisResult, error) {
	rec, err := s.Repo.GetByTrackingID(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	return readyAnalysis(rec)
}

func readyAnalysis(rec *domain.Record) (*domain.AnalysisResult, error) {
	if rec.Status != domain.StatusReady {
		return nil, fmt.Errorf("%w: audit %s is %s", domain.ErrNotReady, rec.TrackingID, rec.Status)
	}
	return rec.Analysis()
}

// List returns a requester's audits, newest first.
func (s *Service) List(ctx context.Context, requesterID string, page, pageSize int) (domain.PaginatedResult, error) {
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return domain.PaginatedResult{}, fmt.Errorf("%w: requesterId is required", domain.ErrValidation)
	}
	page, pageSize = domain.NormalizePage(page, pageSize)
	return s.Repo.ListByRequester(ctx, requesterID, page, pageSize)
}

// ProgressView reports the provider's view of a running audit.
type ProgressView struct {
	TrackingID string        `json:"trackingId"`
	Status     domain.Status `json:"status"`
	JobID      string        `json:"jobId,omitempty"`
	Provider   string        `json:"providerStatus,omitempty"`
	// Failures lists logged processing failures of a failed audit.
	Failures []*failures.Failure `json:"failures,omitempty"`
}

const progressFailureLimit = 10

// Progress asks the scraper how a running audit's job is doing. Terminal
// audits are answered from the store alone; failed ones carry their
// failure log.
func (s *Service) Progress(ctx context.Context, trackingID string) (ProgressView, error) {
	rec, err := s.Repo.GetByTrackingID(ctx, trackingID)
	if err != nil {
		return ProgressView{}, err
	}
	view := ProgressView{TrackingID: rec.TrackingID, Status: rec.Status, JobID: rec.ExternalJobID}
	if rec.Status == domain.StatusFailed && s.Failures != nil {
		logged, err := s.Failures.ListByTracking(ctx, rec.TrackingID, progressFailureLimit)
		if err != nil {
			// diagnostics only
			s.log().Warn("list audit failures", zap.String("tracking_id", rec.TrackingID), zap.Error(err))
		}
		view.Failures = logged
	}
	if rec.Status != domain.StatusRunning || rec.ExternalJobID == "" {
		return view, nil
	}
	pctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()
	state, err := s.Scraper.Progress(pctx, rec.ExternalJobID)
	if err != nil {
		return ProgressView{}, fmt.Errorf("%w: provider progress: %v", domain.ErrCollaborator, err)
	}
	view.Provider = state
	s.log().Info("provider progress",
		zap.String("tracking_id", rec.TrackingID),
		zap.String("job_id", rec.ExternalJobID),
		zap.String("provider_status", state),
		zap.Duration("age", s.now().Sub(rec.CreatedAt)))
	return view, nil
}

//
// ==== REPORT ====
//

// ReportCommand untuk render laporan PDF
type ReportCommand struct {
	TrackingID  string
	DisplayName string
	Date        time.Time
}

type ReportResult struct {
	TrackingID string    `json:"trackingId"`
	ReportURL  string    `json:"reportUrl"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// ReportKey is the object key a rendered report is stored under.
func ReportKey(trackingID string) string {
	return fmt.Sprintf("reports/%s.pdf", trackingID)
}

// Report renders a ready audit into a document and stores it.
func (s *Service) Report(ctx context.Context, cmd ReportCommand) (ReportResult, error) {
	trackingID := strings.TrimSpace(cmd.TrackingID)
	if trackingID == "" {
		return ReportResult{}, fmt.Errorf("%w: trackingId is required", domain.ErrValidation)
	}
	rec, err := s.Repo.GetByTrackingID(ctx, trackingID)
	if err != nil {
		return ReportResult{}, err
	}
	analysis, err := readyAnalysis(rec)
	if err != nil {
		return ReportResult{}, err
	}

	date := cmd.Date
	if date.IsZero() {
		date = s.now()
	}
	name := strings.TrimSpace(cmd.DisplayName)
	if name == "" {
		name = analysis.Name
	}

	rctx, cancel := context.WithTimeout(ctx, s.timeout())
	pdf, err := s.Renderer.Render(rctx, domain.ReportInput{
		TrackingID:  trackingID,
		ProfileURL:  rec.ProfileURL,
		DisplayName: name,
		Date:        date,
		Analysis:    *analysis,
	})
	cancel()
	if err != nil {
		return ReportResult{}, fmt.Errorf("%w: render report: %v", domain.ErrCollaborator, err)
	}

	pctx, cancel := context.WithTimeout(ctx, s.timeout())
	url, expires, err := s.Documents.PutReport(pctx, ReportKey(trackingID), pdf)
	cancel()
	if err != nil {
		return ReportResult{}, fmt.Errorf("%w: store report: %v", domain.ErrCollaborator, err)
	}
	s.log().Info("report rendered",
		zap.String("tracking_id", trackingID), zap.Int("bytes", len(pdf)))
	return ReportResult{TrackingID: trackingID, ReportURL: url, ExpiresAt: expires}, nil
}
