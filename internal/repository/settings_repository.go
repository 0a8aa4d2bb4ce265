package repository

import (
	"context"
	"errors"

	"github.com/noah-isme/dz-manifest-api/internal/models"
	"github.com/noah-isme/dz-manifest-api/internal/store"
	appErrors "github.com/noah-isme/dz-manifest-api/pkg/errors"
)

// SettingsID is the single manifest settings document.
const SettingsID = "manifest"

// SettingsRepository stores the runtime manifest settings under settings/manifest.
type SettingsRepository struct {
	docs documents[models.ManifestSettings]
}

// NewSettingsRepository constructs the repository.
func NewSettingsRepository(s store.Store, tx *store.Transactor) *SettingsRepository {
	return &SettingsRepository{docs: newDocuments[models.ManifestSettings](s, tx, CollectionSettings, "settings")}
}

// Get returns the stored settings; ok is false when none were saved yet.
func (r *SettingsRepository) Get(ctx context.Context) (*models.ManifestSettings, bool, error) {
	settings, _, err := r.docs.get(ctx, SettingsID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return settings, true, nil
}

// Save writes the settings document.
func (r *SettingsRepository) Save(ctx context.Context, settings models.ManifestSettings) error {
	return r.docs.put(ctx, SettingsID, settings)
}
