package exportsvc

import (
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/masomo/core/grading"
)

// ExcludedMark fills the cell of an assessment a student is exempt from.
const ExcludedMark = "EX"

const (
	studentHeader = "Student"
	gradeHeader   = "Final grade"
	maxSheetName  = 31
)

var sheetNameReplacer = strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "(", "]", ")")

func sheetName(className string) string {
	name := []rune(strings.TrimSpace(sheetNameReplacer.Replace(className)))
	if len(name) == 0 {
		return "Gradebook"
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return string(name)
}

func topLevel(assessments []grading.Assessment) []grading.Assessment {
	graded := make([]grading.Assessment, 0, len(assessments))
	for _, a := range assessments {
		if !a.ParentID.Valid {
			graded = append(graded, a)
		}
	}
	return graded
}

func header(a grading.Assessment) string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// WriteGradebook writes one sheet listing every student of breakdowns (sorted by id), the resolved
// score of each top-level assessment and the final grade. Nothing is recomputed.
func WriteGradebook(w io.Writer, className string, assessments []grading.Assessment, breakdowns map[string]grading.Breakdown) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := sheetName(className)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}

	graded := topLevel(assessments)
	gradeCol := len(graded) + 2

	set := func(col, row int, value interface{}) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheet, cell, value)
	}

	// header
	if err := set(1, 1, studentHeader); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for i, a := range graded {
		if err := set(i+2, 1, header(a)); err != nil {
			return errors.Wrap(err, "writing header")
		}
	}
	if err := set(gradeCol, 1, gradeHeader); err != nil {
		return errors.Wrap(err, "writing header")
	}

	students := make([]string, 0, len(breakdowns))
	for studentID := range breakdowns {
		students = append(students, studentID)
	}
	sort.Strings(students)

	for r, studentID := range students {
		row := r + 2
		bd := breakdowns[studentID]
		scores := make(map[string]float64, len(bd.Items))
		for _, it := range bd.Items {
			scores[it.AssessmentID] = it.Score
		}

		if err := set(1, row, studentID); err != nil {
			return errors.Wrapf(err, "writing student %s", studentID)
		}
		for i, a := range graded {
			var value interface{} = scores[a.ID]
			if contains(bd.Excluded, a.ID) {
				value = ExcludedMark
			}
			if err := set(i+2, row, value); err != nil {
				return errors.Wrapf(err, "writing student %s", studentID)
			}
		}
		if err := set(gradeCol, row, bd.Grade); err != nil {
			return errors.Wrapf(err, "writing student %s", studentID)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      1,
		TopLeftCell: "B2",
		ActivePane:  "bottomRight",
	}); err != nil {
		return errors.Wrap(err, "freezing header")
	}

	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing xlsx")
	}
	return nil
}
