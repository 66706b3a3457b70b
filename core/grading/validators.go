package grading

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo/core"
)

// GradeRequest carries everything needed to grade one student without touching storage.
type GradeRequest struct {
	Assessments []Assessment  `json:"assessments" validate:"dive"`
	Scores      []ScoreRecord `json:"scores" validate:"dive"`
}

func (gr *GradeRequest) Validate(validate *validator.Validate) error {
	for i := range gr.Assessments {
		gr.Assessments[i].ID = core.CleanString(gr.Assessments[i].ID)
		if gr.Assessments[i].ParentID.Valid {
			gr.Assessments[i].ParentID.String = core.CleanString(gr.Assessments[i].ParentID.String)
		}
	}
	for i := range gr.Scores {
		gr.Scores[i].AssessmentID = core.CleanString(gr.Scores[i].AssessmentID)
	}

	if err := validate.Struct(gr); err != nil {
		return err
	}
	return ValidateCatalog(gr.Assessments)
}

type GradeResponse struct {
	Grade     float64   `json:"grade"`
	Breakdown Breakdown `json:"breakdown"`
}
