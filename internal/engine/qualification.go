package engine

import (
	"github.com/noah-isme/dz-manifest-api/internal/models"
	appErrors "github.com/noah-isme/dz-manifest-api/pkg/errors"
)

// CheckQualification verifies inst may take the student as primary instructor.
// A zero weight limit means no limit.
func CheckQualification(inst models.Instructor, a models.LoadAssignment) error {
	if !inst.ClockedIn {
		return appErrors.Clonef(appErrors.ErrQualificationMismatch, "%s is not clocked in", displayName(inst))
	}
	switch a.JumpType {
	case models.JumpTypeTandem:
		if !inst.CanTandem {
			return appErrors.Clonef(appErrors.ErrQualificationMismatch, "%s is not tandem rated", displayName(inst))
		}
		if inst.TandemWeightLimit > 0 && a.StudentWeight > inst.TandemWeightLimit {
			return appErrors.Clonef(appErrors.ErrQualificationMismatch, "student weight %d lb exceeds %s's tandem limit of %d lb",
				a.StudentWeight, displayName(inst), inst.TandemWeightLimit)
		}
	case models.JumpTypeAFF:
		if !inst.CanAFF {
			return appErrors.Clonef(appErrors.ErrQualificationMismatch, "%s is not AFF rated", displayName(inst))
		}
		if inst.AFFWeightLimit > 0 && a.StudentWeight > inst.AFFWeightLimit {
			return appErrors.Clonef(appErrors.ErrQualificationMismatch, "student weight %d lb exceeds %s's AFF limit of %d lb",
				a.StudentWeight, displayName(inst), inst.AFFWeightLimit)
		}
	default:
		return appErrors.Clonef(appErrors.ErrValidation, "unknown jump type %q", a.JumpType)
	}
	if inst.AFFLocked && !inst.LockedTo(a.StudentID) {
		return appErrors.Clonef(appErrors.ErrQualificationMismatch, "%s is locked to AFF students until released", displayName(inst))
	}
	return nil
}

// CheckVideoQualification verifies inst may fly outside video for the assignment.
func CheckVideoQualification(inst models.Instructor, a models.LoadAssignment) error {
	if !inst.ClockedIn {
		return appErrors.Clonef(appErrors.ErrQualificationMismatch, "%s is not clocked in", displayName(inst))
	}
	if !inst.CanVideo {
		return appErrors.Clonef(appErrors.ErrQualificationMismatch, "%s is not video rated", displayName(inst))
	}
	if !a.HasOutsideVideo {
		return appErrors.Clone(appErrors.ErrValidation, "assignment has no outside video slot")
	}
	if inst.AFFLocked {
		return appErrors.Clonef(appErrors.ErrQualificationMismatch, "%s is locked to AFF students until released", displayName(inst))
	}
	return nil
}

// Qualified is CheckQualification as a predicate.
func Qualified(inst models.Instructor, a models.LoadAssignment) bool {
	return CheckQualification(inst, a) == nil
}

func displayName(inst models.Instructor) string {
	if inst.Name != "" {
		return inst.Name
	}
	return "instructor " + inst.ID
}
