package repository

import (
	"context"

	"github.com/noah-isme/dz-manifest-api/internal/models"
	"github.com/noah-isme/dz-manifest-api/internal/store"
)

// GroupRepository reads co-traveling student groups under groups/{id}.
type GroupRepository struct {
	docs documents[models.Group]
}

// NewGroupRepository constructs the repository.
func NewGroupRepository(s store.Store, tx *store.Transactor) *GroupRepository {
	return &GroupRepository{docs: newDocuments[models.Group](s, tx, CollectionGroups, "group")}
}

// Get fetches one group.
func (r *GroupRepository) Get(ctx context.Context, id string) (*models.Group, error) {
	group, _, err := r.docs.get(ctx, id)
	return group, err
}

// Put upserts a group.
func (r *GroupRepository) Put(ctx context.Context, group models.Group) error {
	return r.docs.put(ctx, group.ID, group)
}
