package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/dz-manifest-api/internal/dto"
	"github.com/noah-isme/dz-manifest-api/internal/models"
	appErrors "github.com/noah-isme/dz-manifest-api/pkg/errors"
)

type settingsRepository interface {
	Get(ctx context.Context) (*models.ManifestSettings, bool, error)
	Save(ctx context.Context, settings models.ManifestSettings) error
}

// SettingsService serves the runtime manifest settings. Values are read on
// every call so operators can change them without a restart.
type SettingsService struct {
	repo      settingsRepository
	defaults  models.ManifestSettings
	validator *validator.Validate
	audit     auditLogger
	logger    *zap.Logger
	now       func() time.Time
}

// SettingsServiceOption configures the settings service.
type SettingsServiceOption func(*SettingsService)

// WithSettingsAudit records every settings update.
func WithSettingsAudit(audit auditLogger) SettingsServiceOption {
	return func(s *SettingsService) {
		s.audit = audit
	}
}

// WithSettingsClock overrides the wall clock.
func WithSettingsClock(now func() time.Time) SettingsServiceOption {
	return func(s *SettingsService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSettingsService constructs the service. defaults apply until a settings record is saved.
func NewSettingsService(repo settingsRepository, defaults models.ManifestSettings, validate *validator.Validate, logger *zap.Logger, opts ...SettingsServiceOption) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &SettingsService{
		repo:      repo,
		defaults:  defaults,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Current returns the stored settings or the configured defaults.
func (s *SettingsService) Current(ctx context.Context) (models.ManifestSettings, error) {
	stored, ok, err := s.repo.Get(ctx)
	if err != nil {
		return models.ManifestSettings{}, err
	}
	if !ok {
		return s.defaults, nil
	}
	return *stored, nil
}

// Update validates and replaces the settings.
func (s *SettingsService) Update(ctx context.Context, req dto.UpdateSettingsRequest, actor string) (*models.ManifestSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	previous, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	next := models.ManifestSettings{
		MinutesBetweenLoads:  req.MinutesBetweenLoads,
		InstructorCycleTime:  req.InstructorCycleTime,
		DefaultPlaneCapacity: req.DefaultPlaneCapacity,
		UpdatedAt:            s.now(),
		UpdatedBy:            actor,
	}
	if err := s.repo.Save(ctx, next); err != nil {
		return nil, err
	}
	s.logger.Info("manifest settings updated",
		zap.Int("minutes_between_loads", next.MinutesBetweenLoads),
		zap.Int("instructor_cycle_time", next.InstructorCycleTime),
		zap.Int("default_plane_capacity", next.DefaultPlaneCapacity),
	)
	emitAudit(ctx, s.audit, s.logger, "settings-service", &models.AuditLog{
		UserID:    optionalString(actor),
		Action:    models.AuditActionSettings,
		Resource:  "manifest_settings",
		OldValues: auditPayload(previous),
		NewValues: auditPayload(next),
	})
	return &next, nil
}
