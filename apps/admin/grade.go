package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core/grading"
	exportsvc "github.com/trezcool/masomo/services/export"
)

var errCatalogIssues = errors.New("the assessment catalog has errors")

func (cli *commandLine) grade(classID, studentID string, breakdown bool) error {
	ctx := context.Background()
	if !breakdown {
		grade, err := cli.gradingSvc.StudentGrade(ctx, classID, studentID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "%.2f\n", grade)
		return nil
	}

	bd, err := cli.gradingSvc.StudentBreakdown(ctx, classID, studentID)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ASSESSMENT\tKIND\tSCORE\tWEIGHT\tCONTRIBUTION")
	for _, it := range bd.Items {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\t%.2f\n", it.AssessmentID, it.Kind, it.Score, it.Weight, it.Contribution)
	}
	for _, id := range bd.Excluded {
		fmt.Fprintf(w, "%s\texcluded\t-\t-\t-\n", id)
	}
	fmt.Fprintf(w, "GRADE\t\t%.2f\t%.2f\t\n", bd.Grade, bd.ActiveWeight)
	return w.Flush()
}

func (cli *commandLine) check(classID string) error {
	issues, err := cli.gradingSvc.CheckClass(context.Background(), classID)
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		fmt.Fprintln(cli.out, "no issues found")
		return nil
	}

	var failed bool
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEVERITY\tASSESSMENT\tFIELD\tMESSAGE")
	for _, iss := range issues {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", iss.Severity, iss.AssessmentID, iss.Field, iss.Message)
		failed = failed || iss.Severity == grading.SeverityError
	}
	if err = w.Flush(); err != nil {
		return err
	}
	if failed {
		return errCatalogIssues
	}
	return nil
}

func (cli *commandLine) export(classID, path string) error {
	assessments, breakdowns, err := cli.gradingSvc.ClassBreakdowns(context.Background(), classID)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating gradebook file")
	}
	if err = exportsvc.WriteGradebook(f, classID, assessments, breakdowns); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return errors.Wrap(err, "closing gradebook file")
	}
	fmt.Fprintf(cli.out, "%d students written to %s\n", len(breakdowns), path)
	return nil
}
