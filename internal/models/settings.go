package models

import "time"

// ManifestSettings are the operator-tunable engine inputs, read at call time.
type ManifestSettings struct {
	MinutesBetweenLoads  int       `json:"minutesBetweenLoads" validate:"min=1,max=240" yaml:"minutesBetweenLoads"`
	InstructorCycleTime  int       `json:"instructorCycleTime" validate:"min=0,max=600" yaml:"instructorCycleTime"`
	DefaultPlaneCapacity int       `json:"defaultPlaneCapacity" validate:"min=2,max=64" yaml:"defaultPlaneCapacity"`
	UpdatedAt            time.Time `json:"updatedAt,omitempty" yaml:"-"`
	UpdatedBy            string    `json:"updatedBy,omitempty" yaml:"-"`
}
