// Package seed loads roster, group and queue fixtures into the shared store.
package seed

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/dz-manifest-api/internal/models"
)

// Fixture is the on-disk seed document.
type Fixture struct {
	Settings    *models.ManifestSettings `yaml:"settings"`
	Instructors []models.Instructor      `yaml:"instructors"`
	Groups      []models.Group           `yaml:"groups"`
	Queue       []models.QueueEntry      `yaml:"queue"`
}

// Summary counts what Apply wrote.
type Summary struct {
	Instructors int
	Groups      int
	Queue       int
	Settings    bool
}

type instructorWriter interface {
	Put(ctx context.Context, inst models.Instructor) error
}

type groupWriter interface {
	Put(ctx context.Context, group models.Group) error
}

type queueWriter interface {
	Put(ctx context.Context, entry models.QueueEntry) error
}

type settingsWriter interface {
	Save(ctx context.Context, settings models.ManifestSettings) error
}

// Targets are the repositories a fixture is written to.
type Targets struct {
	Instructors instructorWriter
	Groups      groupWriter
	Queue       queueWriter
	Settings    settingsWriter
}

// LoadFile parses and checks a YAML fixture.
func LoadFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML fixture and checks its references.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := f.check(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Fixture) check() error {
	if f.Settings != nil {
		if err := validator.New().Struct(f.Settings); err != nil {
			return fmt.Errorf("settings: %w", err)
		}
	}
	instructors := make(map[string]struct{}, len(f.Instructors))
	for _, inst := range f.Instructors {
		if inst.ID == "" {
			return fmt.Errorf("instructor %q has no id", inst.Name)
		}
		if _, dup := instructors[inst.ID]; dup {
			return fmt.Errorf("duplicate instructor id %s", inst.ID)
		}
		instructors[inst.ID] = struct{}{}
	}
	groups := make(map[string]struct{}, len(f.Groups))
	for _, g := range f.Groups {
		if g.ID == "" {
			return fmt.Errorf("group %q has no id", g.Name)
		}
		groups[g.ID] = struct{}{}
	}
	entries := make(map[string]struct{}, len(f.Queue))
	for _, q := range f.Queue {
		switch {
		case q.ID == "" || q.StudentID == "":
			return fmt.Errorf("queue entry %q needs id and studentId", q.StudentName)
		case q.JumpType != models.JumpTypeTandem && q.JumpType != models.JumpTypeAFF:
			return fmt.Errorf("queue entry %s: unknown jump type %q", q.ID, q.JumpType)
		}
		if _, dup := entries[q.ID]; dup {
			return fmt.Errorf("duplicate queue entry id %s", q.ID)
		}
		entries[q.ID] = struct{}{}
		if q.RequestedInstructorID != "" {
			if _, ok := instructors[q.RequestedInstructorID]; !ok {
				return fmt.Errorf("queue entry %s requests unknown instructor %s", q.ID, q.RequestedInstructorID)
			}
		}
		if q.GroupID != "" {
			if _, ok := groups[q.GroupID]; !ok {
				return fmt.Errorf("queue entry %s references unknown group %s", q.ID, q.GroupID)
			}
		}
	}
	return nil
}

// Apply writes the fixture. Queue entries without a timestamp are stamped
// now, one second apart, in file order.
func Apply(ctx context.Context, f *Fixture, t Targets, now time.Time) (Summary, error) {
	var sum Summary
	if f.Settings != nil && t.Settings != nil {
		settings := *f.Settings
		settings.UpdatedAt = now
		settings.UpdatedBy = "seed"
		if err := t.Settings.Save(ctx, settings); err != nil {
			return sum, fmt.Errorf("save settings: %w", err)
		}
		sum.Settings = true
	}
	for _, inst := range f.Instructors {
		if err := t.Instructors.Put(ctx, inst); err != nil {
			return sum, fmt.Errorf("put instructor %s: %w", inst.ID, err)
		}
		sum.Instructors++
	}
	for _, g := range f.Groups {
		if err := t.Groups.Put(ctx, g); err != nil {
			return sum, fmt.Errorf("put group %s: %w", g.ID, err)
		}
		sum.Groups++
	}
	for i, q := range f.Queue {
		if q.QueueTimestamp.IsZero() {
			q.QueueTimestamp = now.Add(time.Duration(i) * time.Second)
		}
		if err := t.Queue.Put(ctx, q); err != nil {
			return sum, fmt.Errorf("put queue entry %s: %w", q.ID, err)
		}
		sum.Queue++
	}
	return sum, nil
}
