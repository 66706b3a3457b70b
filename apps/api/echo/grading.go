package echoapi

import (
	"bytes"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core/grading"
	exportsvc "github.com/trezcool/masomo/services/export"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type gradingApi struct {
	svc      *grading.Service
	validate *validator.Validate
}

func registerGradingAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *grading.Service, validate *validator.Validate) {
	api := gradingApi{svc: svc, validate: validate}

	// un-authed endpoints
	g.POST("/grades/compute", api.compute)

	// authed endpoints
	cg := g.Group("/classes/:classID", jwt, classTenantMiddleware(svc))
	cg.GET("/grades", api.classGrades, staffMiddleware())
	cg.GET("/gradebook.xlsx", api.gradebook, staffMiddleware())
	cg.GET("/checks", api.checks, staffMiddleware())

	sg := cg.Group("/students/:studentID", ctxStudentOrStaffMiddleware())
	sg.GET("/grade", api.studentGrade)
	sg.GET("/breakdown", api.studentBreakdown)

	scg := g.Group("/schools/:schoolID", jwt, schoolAdminMiddleware())
	scg.GET("/average", api.schoolAverage)
	scg.DELETE("/average", api.invalidateSchoolAverage)

	g.GET("/students/:studentID/report-card", api.reportCard, jwt, ctxStudentOrStaffMiddleware(), studentTenantMiddleware(svc))
}

// Handlers

func (api *gradingApi) compute(ctx echo.Context) error {
	var data grading.GradeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	bd := grading.ComputeBreakdown(data.Assessments, data.Scores)
	return ctx.JSON(http.StatusOK, grading.GradeResponse{Grade: bd.Grade, Breakdown: bd})
}

func (api *gradingApi) studentGrade(ctx echo.Context) error {
	grade, err := api.svc.StudentGrade(ctx.Request().Context(), ctx.Param("classID"), ctx.Param("studentID"))
	if err != nil {
		return errors.Wrap(err, "computing student grade")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"grade": grade})
}

func (api *gradingApi) studentBreakdown(ctx echo.Context) error {
	bd, err := api.svc.StudentBreakdown(ctx.Request().Context(), ctx.Param("classID"), ctx.Param("studentID"))
	if err != nil {
		return errors.Wrap(err, "computing student breakdown")
	}
	return ctx.JSON(http.StatusOK, bd)
}

func (api *gradingApi) classGrades(ctx echo.Context) error {
	grades, err := api.svc.ClassGrades(ctx.Request().Context(), ctx.Param("classID"))
	if err != nil {
		return errors.Wrap(err, "computing class grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *gradingApi) gradebook(ctx echo.Context) error {
	classID := ctx.Param("classID")
	assessments, breakdowns, err := api.svc.ClassBreakdowns(ctx.Request().Context(), classID)
	if err != nil {
		return errors.Wrap(err, "computing class breakdowns")
	}

	// rendered in memory so that a failure still gets a proper error response
	var buf bytes.Buffer
	if err = exportsvc.WriteGradebook(&buf, classID, assessments, breakdowns); err != nil {
		return errors.Wrap(err, "writing gradebook")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="gradebook-`+classID+`.xlsx"`)
	return ctx.Blob(http.StatusOK, xlsxMIME, buf.Bytes())
}

func (api *gradingApi) checks(ctx echo.Context) error {
	issues, err := api.svc.CheckClass(ctx.Request().Context(), ctx.Param("classID"))
	if err != nil {
		return errors.Wrap(err, "checking class assessments")
	}
	if issues == nil {
		issues = []grading.Issue{}
	}
	return ctx.JSON(http.StatusOK, issues)
}

func (api *gradingApi) schoolAverage(ctx echo.Context) error {
	avg, err := api.svc.SchoolAverage(ctx.Request().Context(), ctx.Param("schoolID"))
	if err != nil {
		return errors.Wrap(err, "computing school average")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"average": avg})
}

func (api *gradingApi) invalidateSchoolAverage(ctx echo.Context) error {
	if err := api.svc.InvalidateSchoolAverage(ctx.Request().Context(), ctx.Param("schoolID")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gradingApi) reportCard(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	studentID := ctx.Param("studentID")

	// staff of a school only see the classes of their school
	var schoolID string
	if !isOwnRecord(claims, studentID) {
		schoolID = claims.SchoolID
	}
	card, err := api.svc.ReportCard(ctx.Request().Context(), studentID, schoolID)
	if err != nil {
		return errors.Wrap(err, "computing report card")
	}
	return ctx.JSON(http.StatusOK, card)
}
