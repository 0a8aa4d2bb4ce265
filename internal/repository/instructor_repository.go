package repository

import (
	"context"
	"sort"

	"github.com/noah-isme/dz-manifest-api/internal/models"
	"github.com/noah-isme/dz-manifest-api/internal/store"
)

// InstructorRepository reads the roster kept under instructors/{id}.
type InstructorRepository struct {
	docs documents[models.Instructor]
}

// NewInstructorRepository constructs the repository.
func NewInstructorRepository(s store.Store, tx *store.Transactor) *InstructorRepository {
	return &InstructorRepository{docs: newDocuments[models.Instructor](s, tx, CollectionInstructors, "instructor")}
}

// Get fetches one instructor.
func (r *InstructorRepository) Get(ctx context.Context, id string) (*models.Instructor, error) {
	inst, _, err := r.docs.get(ctx, id)
	return inst, err
}

// List returns the roster ordered by name.
func (r *InstructorRepository) List(ctx context.Context) ([]models.Instructor, error) {
	roster, err := r.docs.list(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(roster, func(i, j int) bool {
		if roster[i].Name != roster[j].Name {
			return roster[i].Name < roster[j].Name
		}
		return roster[i].ID < roster[j].ID
	})
	return roster, nil
}

// Put upserts an instructor. Roster CRUD lives elsewhere; this serves seeding.
func (r *InstructorRepository) Put(ctx context.Context, inst models.Instructor) error {
	return r.docs.put(ctx, inst.ID, inst)
}
