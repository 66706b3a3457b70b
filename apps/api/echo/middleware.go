package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grading"
)

// staffMiddleware lets teachers and admins through.
func staffMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsStaff() {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// schoolAdminMiddleware lets through admins of the school named by the `schoolID` path param.
// Admins without a school (platform staff) can access every school.
func schoolAdminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && (claims.SchoolID == "" || claims.SchoolID == ctx.Param("schoolID")) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// ctxStudentOrStaffMiddleware lets through staff, and students accessing their own `studentID`.
func ctxStudentOrStaffMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsStaff() || isOwnRecord(claims, ctx.Param("studentID")) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func isOwnRecord(claims core.Claims, studentID string) bool {
	return claims.IsStudent && claims.Subject != "" && claims.Subject == studentID
}

// classTenantMiddleware keeps staff of a school to the classes of that school.
// A class without enrollments has no school and only platform staff can reach it.
// Students are left to the route guards.
func classTenantMiddleware(svc *grading.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if !claims.IsStaff() || claims.SchoolID == "" || isOwnRecord(claims, ctx.Param("studentID")) {
				return next(ctx)
			}

			schools, err := svc.ClassSchools(ctx.Request().Context(), ctx.Param("classID"))
			if err != nil {
				return errors.Wrap(err, "querying class schools")
			}
			if len(schools) == 0 {
				return errHttpForbidden
			}
			for _, schoolID := range schools {
				if schoolID != claims.SchoolID {
					return errHttpForbidden
				}
			}
			return next(ctx)
		}
	}
}

// studentTenantMiddleware keeps staff of a school to the students enrolled in that school.
func studentTenantMiddleware(svc *grading.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			studentID := ctx.Param("studentID")
			if !claims.IsStaff() || claims.SchoolID == "" || isOwnRecord(claims, studentID) {
				return next(ctx)
			}

			schools, err := svc.StudentSchools(ctx.Request().Context(), studentID)
			if err != nil {
				return errors.Wrap(err, "querying student schools")
			}
			for _, schoolID := range schools {
				if schoolID == claims.SchoolID {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}
