package grading

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

var errMalformedCatalog = errors.New("malformed assessment catalog")

// Issue is a data-integrity finding on a class's assessment catalog.
// The engine grades malformed catalogs anyway; issues are for the people maintaining them.
type Issue struct {
	AssessmentID string   `json:"assessment_id"`
	Field        string   `json:"field"`
	Message      string   `json:"message"`
	Severity     Severity `json:"severity"`
}

// CheckCatalog reports hierarchy errors (unknown or non-parent parents, nesting, duplicates)
// and warnings (MaxScore fallback, top-level weights not totalling 100, empty parents).
func CheckCatalog(assessments []Assessment) []Issue {
	issues := make([]Issue, 0)
	add := func(a Assessment, field string, sev Severity, format string, args ...interface{}) {
		issues = append(issues, Issue{AssessmentID: a.ID, Field: field, Message: fmt.Sprintf(format, args...), Severity: sev})
	}

	byID := make(map[string]Assessment, len(assessments))
	for _, a := range assessments {
		if a.ID == "" {
			add(a, "id", SeverityError, "assessment id is required")
			continue
		}
		if _, ok := byID[a.ID]; ok {
			add(a, "id", SeverityError, "duplicate assessment id %q", a.ID)
			continue
		}
		byID[a.ID] = a
	}

	children := childrenIndex(assessments)
	var topLevelWeight float64
	var hasTopLevel bool
	for _, a := range assessments {
		if a.Weight < 0 {
			add(a, "weight", SeverityError, "weight cannot be negative (got %v)", a.Weight)
		}
		if a.MaxScore <= 0 && !a.IsParent {
			add(a, "max_score", SeverityWarning, "max score %v is not positive, %d is used instead", a.MaxScore, DefaultMaxScore)
		}

		switch a.Kind() {
		case KindChild:
			if a.IsParent {
				add(a, "is_parent", SeverityError, "a parent assessment cannot itself have a parent")
			}
			parent, ok := byID[a.ParentID.String]
			switch {
			case !ok:
				add(a, "parent_id", SeverityError, "parent %q does not exist in this class", a.ParentID.String)
			case parent.ParentID.Valid:
				add(a, "parent_id", SeverityError, "parent %q is itself a child; only two levels are supported", parent.ID)
			case !parent.IsParent:
				add(a, "parent_id", SeverityError, "parent %q is not marked as a parent", parent.ID)
			}
		case KindParent:
			topLevelWeight += a.Weight
			hasTopLevel = true
			if len(children[a.ID]) == 0 {
				add(a, "children", SeverityWarning, "parent has no children and always scores 0")
			}
		default:
			topLevelWeight += a.Weight
			hasTopLevel = true
		}
	}

	if hasTopLevel && math.Abs(topLevelWeight-100) > 1e-9 {
		issues = append(issues, Issue{
			Field:    "weight",
			Message:  fmt.Sprintf("top-level weights total %v instead of 100", topLevelWeight),
			Severity: SeverityWarning,
		})
	}
	return issues
}

// ValidateCatalog returns a *core.ValidationError listing the error-severity issues, if any.
func ValidateCatalog(assessments []Assessment) error {
	var flds []core.FieldError
	for _, iss := range CheckCatalog(assessments) {
		if iss.Severity != SeverityError {
			continue
		}
		field := iss.Field
		if iss.AssessmentID != "" {
			field = iss.AssessmentID + "." + iss.Field
		}
		flds = append(flds, core.FieldError{Field: field, Error: iss.Message})
	}
	if flds != nil {
		return core.NewValidationError(errMalformedCatalog, flds...)
	}
	return nil
}
