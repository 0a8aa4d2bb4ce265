package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/dz-manifest-api/internal/dto"
	"github.com/noah-isme/dz-manifest-api/internal/engine"
	"github.com/noah-isme/dz-manifest-api/internal/models"
	appErrors "github.com/noah-isme/dz-manifest-api/pkg/errors"
	"github.com/noah-isme/dz-manifest-api/pkg/export"
)

type periodRepository interface {
	Get(ctx context.Context, id string) (*models.Period, error)
	List(ctx context.Context) ([]models.Period, error)
	Put(ctx context.Context, period models.Period) error
	Transact(ctx context.Context, id string, fn func(period *models.Period) error) (*models.Period, error)
}

type loadLister interface {
	List(ctx context.Context) ([]models.Load, error)
}

type instructorLister interface {
	List(ctx context.Context) ([]models.Instructor, error)
}

type periodArchiver interface {
	Archive(ctx context.Context, period models.Period) error
}

type statementRenderer interface {
	Render(st export.Statement) ([]byte, error)
}

type statementFiles interface {
	Save(relPath string, data []byte) (string, error)
	Read(relPath string) ([]byte, error)
	Exists(relPath string) bool
}

type statementSigner interface {
	Sign(subject, relPath string) (string, time.Time, error)
	Verify(token string) (subject, relPath string, err error)
}

// PeriodService computes balances and earnings per accounting period and
// freezes them when a period closes.
type PeriodService struct {
	periods     periodRepository
	loads       loadLister
	instructors instructorLister
	archive     periodArchiver
	renderer    statementRenderer
	files       statementFiles
	signer      statementSigner
	validator   *validator.Validate
	audit       auditLogger
	logger      *zap.Logger
	now         func() time.Time
}

// PeriodServiceOption configures the period service.
type PeriodServiceOption func(*PeriodService)

// WithPeriodArchive mirrors closed periods into the relational archive.
func WithPeriodArchive(archive periodArchiver) PeriodServiceOption {
	return func(s *PeriodService) {
		s.archive = archive
	}
}

// WithStatementStorage keeps a copy of every final statement on disk and
// enables signed download links.
func WithStatementStorage(files statementFiles, signer statementSigner) PeriodServiceOption {
	return func(s *PeriodService) {
		s.files = files
		s.signer = signer
	}
}

// WithPeriodAudit records period closes.
func WithPeriodAudit(audit auditLogger) PeriodServiceOption {
	return func(s *PeriodService) {
		s.audit = audit
	}
}

// WithPeriodClock overrides the wall clock.
func WithPeriodClock(now func() time.Time) PeriodServiceOption {
	return func(s *PeriodService) {
		if now != nil {
			s.now = func() time.Time { return now().UTC() }
		}
	}
}

// NewPeriodService constructs the service.
func NewPeriodService(periods periodRepository, loads loadLister, instructors instructorLister, renderer statementRenderer, validate *validator.Validate, logger *zap.Logger, opts ...PeriodServiceOption) *PeriodService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if renderer == nil {
		renderer = export.NewPDFExporter()
	}
	svc := &PeriodService{
		periods:     periods,
		loads:       loads,
		instructors: instructors,
		renderer:    renderer,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// List returns every period, newest first.
func (s *PeriodService) List(ctx context.Context) ([]models.Period, error) {
	return s.periods.List(ctx)
}

// Open starts a new period. Only one period may be open at a time.
func (s *PeriodService) Open(ctx context.Context, req dto.OpenPeriodRequest) (*models.Period, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	current, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return nil, appErrors.Clonef(appErrors.ErrConflict, "period %s is still open; close it first", current.Name)
	}
	period := models.Period{ID: req.ID, Name: req.Name, Start: s.now()}
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	if req.Start != nil {
		period.Start = req.Start.UTC()
	}
	if _, err := s.periods.Get(ctx, period.ID); err == nil {
		return nil, appErrors.Clonef(appErrors.ErrConflict, "period %s already exists", period.ID)
	}
	if err := s.periods.Put(ctx, period); err != nil {
		return nil, err
	}
	s.logger.Info("period opened", zap.String("period_id", period.ID), zap.Time("start", period.Start))
	return &period, nil
}

// Balances returns totals for every rostered instructor. Closed periods
// return their frozen figures; open periods are computed live and include
// work on loads that have not completed yet.
func (s *PeriodService) Balances(ctx context.Context, periodID string) (*dto.PeriodBalances, error) {
	period, err := s.periods.Get(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period.Closed() {
		return &dto.PeriodBalances{Period: *period, Totals: sortedTotals(period.FinalBalances), Final: true}, nil
	}
	totals, err := s.compute(ctx, *period, true)
	if err != nil {
		return nil, err
	}
	return &dto.PeriodBalances{Period: *period, Totals: totals}, nil
}

// InstructorBalance is the live rotation balance of one instructor in the
// current period, or across all recorded work when no period is open.
func (s *PeriodService) InstructorBalance(ctx context.Context, instructorID string) (float64, error) {
	balances, err := s.CurrentBalances(ctx)
	if err != nil {
		return 0, err
	}
	return balances[instructorID], nil
}

// CurrentBalances maps every rostered instructor to their live balance.
func (s *PeriodService) CurrentBalances(ctx context.Context) (map[string]float64, error) {
	period := models.Period{}
	current, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	if current != nil {
		period = *current
	}
	totals, err := s.compute(ctx, period, true)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(totals))
	for _, t := range totals {
		out[t.InstructorID] = t.Balance
	}
	return out, nil
}

// Close freezes the period's totals. Pending loads are left out: only flown
// work is archived.
func (s *PeriodService) Close(ctx context.Context, periodID, actor string) (*dto.PeriodBalances, error) {
	period, err := s.periods.Get(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period.Closed() {
		return nil, appErrors.Clonef(appErrors.ErrFinalized, "period %s was closed at %s", period.Name, period.ClosedAt.Format(time.RFC3339))
	}
	now := s.now()
	window := *period
	if window.End == nil {
		window.End = &now
	}
	totals, err := s.compute(ctx, window, false)
	if err != nil {
		return nil, err
	}
	final := make(map[string]models.InstructorTotals, len(totals))
	for _, t := range totals {
		final[t.InstructorID] = t
	}

	closed, err := s.periods.Transact(ctx, periodID, func(p *models.Period) error {
		if p.Closed() {
			return appErrors.Clonef(appErrors.ErrFinalized, "period %s is already closed", p.Name)
		}
		p.End = window.End
		p.ClosedAt = &now
		p.FinalBalances = final
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.archive != nil {
		if err := s.archive.Archive(ctx, *closed); err != nil {
			s.logger.Error("period archive failed", zap.String("period_id", closed.ID), zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "period closed but archive copy failed")
		}
	}
	if s.files != nil {
		if _, err := s.storeStatement(ctx, closed.ID); err != nil {
			s.logger.Warn("statement archive failed", zap.String("period_id", closed.ID), zap.Error(err))
		}
	}
	s.logger.Info("period closed", zap.String("period_id", closed.ID), zap.Int("instructors", len(final)))
	emitAudit(ctx, s.audit, s.logger, "period-service", &models.AuditLog{
		UserID:     optionalString(actor),
		Action:     models.AuditActionPeriodClose,
		Resource:   "period",
		ResourceID: optionalString(closed.ID),
		NewValues:  auditPayload(final),
	})
	return &dto.PeriodBalances{Period: *closed, Totals: sortedTotals(final), Final: true}, nil
}

// Statement renders the period's totals as a PDF.
func (s *PeriodService) Statement(ctx context.Context, periodID string) ([]byte, string, error) {
	balances, err := s.Balances(ctx, periodID)
	if err != nil {
		return nil, "", err
	}
	p := balances.Period
	rows := make([]map[string]string, 0, len(balances.Totals))
	var earnings float64
	for _, t := range balances.Totals {
		name := t.InstructorName
		if name == "" {
			name = t.InstructorID
		}
		rows = append(rows, map[string]string{
			"Instructor": name,
			"Jumps":      strconv.Itoa(t.Jumps),
			"Balance":    formatMoney(t.Balance),
			"Earnings":   formatMoney(t.Earnings),
		})
		earnings += t.Earnings
	}
	window := p.Start.Format("2006-01-02") + " to "
	if p.End != nil {
		window += p.End.Format("2006-01-02")
	} else {
		window += "present"
	}
	status := "provisional"
	if balances.Final {
		status = "final"
	}
	pdf, err := s.renderer.Render(export.Statement{
		Title:    "Instructor statement: " + p.Name,
		Subtitle: fmt.Sprintf("%s (%s)", window, status),
		Data: export.Dataset{
			Headers: []string{"Instructor", "Jumps", "Balance", "Earnings"},
			Rows:    rows,
			Align:   map[string]string{"Jumps": "R", "Balance": "R", "Earnings": "R"},
		},
		Footer:      "Total earnings " + formatMoney(earnings),
		GeneratedAt: s.now(),
	})
	if err != nil {
		return nil, "", err
	}
	return pdf, fmt.Sprintf("statement-%s.pdf", p.ID), nil
}

// StatementLink returns a signed, expiring download token for the archived
// statement of a closed period.
func (s *PeriodService) StatementLink(ctx context.Context, periodID string) (*dto.StatementLink, error) {
	if s.files == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "statement archive is not configured")
	}
	period, err := s.periods.Get(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if !period.Closed() {
		return nil, appErrors.Clonef(appErrors.ErrPreconditionFailed, "period %s is still open; statements are archived when it closes", period.Name)
	}
	path := statementPath(period.ID)
	if !s.files.Exists(path) {
		if path, err = s.storeStatement(ctx, period.ID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive statement")
		}
	}
	token, expiresAt, err := s.signer.Sign(period.ID, path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign statement link")
	}
	return &dto.StatementLink{PeriodID: period.ID, Token: token, ExpiresAt: expiresAt}, nil
}

// DownloadStatement resolves a signed token to the archived statement.
func (s *PeriodService) DownloadStatement(ctx context.Context, token string) ([]byte, string, error) {
	if s.files == nil || s.signer == nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "statement archive is not configured")
	}
	periodID, path, err := s.signer.Verify(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, err.Error())
	}
	data, err := s.files.Read(path)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "statement not found")
	}
	return data, fmt.Sprintf("statement-%s.pdf", periodID), nil
}

func (s *PeriodService) storeStatement(ctx context.Context, periodID string) (string, error) {
	pdf, _, err := s.Statement(ctx, periodID)
	if err != nil {
		return "", err
	}
	return s.files.Save(statementPath(periodID), pdf)
}

func statementPath(periodID string) string {
	return "statements/" + periodID + ".pdf"
}

// current returns the latest open period, or nil.
func (s *PeriodService) current(ctx context.Context) (*models.Period, error) {
	periods, err := s.periods.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range periods {
		if !periods[i].Closed() {
			return &periods[i], nil
		}
	}
	return nil, nil
}

func (s *PeriodService) compute(ctx context.Context, period models.Period, includePending bool) ([]models.InstructorTotals, error) {
	loads, err := s.loads.List(ctx)
	if err != nil {
		return nil, err
	}
	roster, err := s.instructors.List(ctx)
	if err != nil {
		return nil, err
	}
	in := engine.BalanceInput{
		Records:     engine.RecordsFromLoads(loads),
		Instructors: roster,
		Period:      period,
	}
	if includePending {
		in.PendingLoads = loads
	}
	totals := make([]models.InstructorTotals, 0, len(roster))
	for _, inst := range roster {
		in.InstructorID = inst.ID
		totals = append(totals, engine.CalculateTotals(in))
	}
	return totals, nil
}

func sortedTotals(m map[string]models.InstructorTotals) []models.InstructorTotals {
	out := make([]models.InstructorTotals, 0, len(m))
	for _, t := range m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].InstructorName != out[j].InstructorName {
			return out[i].InstructorName < out[j].InstructorName
		}
		return out[i].InstructorID < out[j].InstructorID
	})
	return out
}

func formatMoney(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}
