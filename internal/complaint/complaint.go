// Package complaint defines the domain types shared across the triage pipeline:
// the inbound complaint record and the category/department enumerations.
package complaint

import "time"

// Category is the department-facing classification of a complaint.
type Category string

const (
	CategoryCleanliness Category = "cleanliness"
	CategoryMaintenance Category = "maintenance"
	CategorySafety      Category = "safety"
	CategoryStaff       Category = "staff"
	CategoryOther       Category = "other"
)

// Categories lists every category in priority order. When two categories
// score equally during classification, the earlier entry wins; Safety is
// first so hazard reports never lose a tie.
var Categories = []Category{
	CategorySafety,
	CategoryMaintenance,
	CategoryCleanliness,
	CategoryStaff,
	CategoryOther,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Department is the operational unit a complaint is routed to.
type Department string

const (
	DeptHousekeeping Department = "housekeeping"
	DeptMaintenance  Department = "maintenance"
	DeptSafety       Department = "safety"
	DeptHumanRes     Department = "human_resources"
	DeptGeneralAdmin Department = "general_admin"
)

// Input is a single citizen-submitted complaint as handed to the engine.
// Media has already been decoded to bytes by the transport collaborator.
// Immutable once created.
type Input struct {
	Text             string    `json:"text"`
	ImageBytes       []byte    `json:"image_bytes,omitempty"`
	VideoRef         string    `json:"video_ref,omitempty"`
	SubmittedAt      time.Time `json:"submitted_at"`
	ReporterLocation string    `json:"reporter_location,omitempty"`
}

// HasMedia reports whether the complaint carries image or video evidence.
func (in *Input) HasMedia() bool {
	return len(in.ImageBytes) > 0 || in.VideoRef != ""
}
