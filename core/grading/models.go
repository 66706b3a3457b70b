package grading

import (
	"github.com/volatiletech/null/v8"
)

// DefaultMaxScore is used whenever an assessment's MaxScore is not positive.
const DefaultMaxScore = 100

type Kind string

const (
	KindStandalone Kind = "standalone"
	KindParent     Kind = "parent"
	KindChild      Kind = "child"
)

// Assessment is one graded item within a class.
// Weight is the "weight points" value, never the legacy weight percent.
type Assessment struct {
	ID       string      `json:"id" db:"id" validate:"notblank"`
	ClassID  string      `json:"class_id,omitempty" db:"class_id"`
	Name     string      `json:"name,omitempty" db:"name"`
	ParentID null.String `json:"parent_id" db:"parent_id"`
	IsParent bool        `json:"is_parent" db:"is_parent"`
	Weight   float64     `json:"weight" db:"weight_points" validate:"min=0"`
	MaxScore float64     `json:"max_score" db:"max_score"`
}

// Kind tells whether a is graded directly, derived from children, or contributes to a parent.
// Only two levels are modelled: a ParentID always makes a a child.
func (a Assessment) Kind() Kind {
	switch {
	case a.ParentID.Valid:
		return KindChild
	case a.IsParent:
		return KindParent
	default:
		return KindStandalone
	}
}

func (a Assessment) maxScore() float64 {
	if a.MaxScore <= 0 {
		return DefaultMaxScore
	}
	return a.MaxScore
}

// ScoreRecord is one student's result on one assessment.
// An invalid RawScore means no score has been submitted yet.
type ScoreRecord struct {
	AssessmentID string       `json:"assessment_id" db:"assessment_id" validate:"notblank"`
	StudentID    string       `json:"student_id,omitempty" db:"student_id"`
	RawScore     null.Float64 `json:"raw_score" db:"raw_score"`
	IsExcluded   bool         `json:"is_excluded" db:"is_excluded"`
}

// BreakdownItem is the resolved state of one top-level assessment.
// Contribution is expressed on the rescaled 100-point scale, so the items of a Breakdown sum to its Grade.
type BreakdownItem struct {
	AssessmentID string  `json:"assessment_id"`
	Name         string  `json:"name,omitempty"`
	Kind         Kind    `json:"kind"`
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

type Breakdown struct {
	Grade        float64         `json:"grade"`
	ActiveWeight float64         `json:"active_weight"`
	Items        []BreakdownItem `json:"items"`
	Excluded     []string        `json:"excluded"`
}

// Enrollment is one student enrolled in one class.
type Enrollment struct {
	StudentID string `json:"student_id" db:"student_id"`
	ClassID   string `json:"class_id" db:"class_id"`
	SchoolID  string `json:"school_id" db:"school_id"`
	Subject   string `json:"subject" db:"subject"`
}

type SubjectGrade struct {
	Subject string  `json:"subject"`
	Grade   float64 `json:"grade"`
	Classes int     `json:"classes"`
}

type ReportCard struct {
	StudentID string         `json:"student_id"`
	Subjects  []SubjectGrade `json:"subjects"`
}

type ScoreFilter struct {
	ClassID    string
	StudentIDs []string
}

type EnrollmentFilter struct {
	StudentID string
	ClassID   string
	SchoolID  string
}
