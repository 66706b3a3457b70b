package grading

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo/core"
)

func TestGradeRequest_Validate(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	t.Run("ids are cleaned", func(t *testing.T) {
		req := GradeRequest{
			Assessments: []Assessment{
				{ID: " p ", IsParent: true, Weight: 100},
				{ID: "c", ParentID: null.StringFrom("p\n"), Weight: 1},
			},
			Scores: []ScoreRecord{{AssessmentID: " c", RawScore: null.Float64From(50)}},
		}
		if assert.NoError(t, req.Validate(validate)) {
			assert.Equal(t, "p", req.Assessments[0].ID)
			assert.Equal(t, null.StringFrom("p"), req.Assessments[1].ParentID)
			assert.Equal(t, "c", req.Scores[0].AssessmentID)
		}
	})

	t.Run("field errors", func(t *testing.T) {
		req := GradeRequest{Assessments: []Assessment{{ID: "", Weight: -5}}}
		err := req.Validate(validate)
		var vErrs validator.ValidationErrors
		if assert.True(t, errors.As(err, &vErrs)) {
			assert.Len(t, vErrs, 2)
		}
	})

	t.Run("catalog errors", func(t *testing.T) {
		req := GradeRequest{Assessments: []Assessment{{ID: "c", ParentID: null.StringFrom("ghost"), Weight: 1}}}
		err := req.Validate(validate)
		assert.True(t, core.IsValidation(err))
		assert.True(t, errors.Is(err, errMalformedCatalog))
	})
}
