package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core/grading"
)

const (
	assessmentsQuery = `
SELECT id, class_id, name, parent_id, is_parent, weight_points, max_score
FROM assessments
WHERE class_id = $1
ORDER BY position`

	// scores and exclusions are stored apart; an exclusion without a score still yields a record.
	scoresQuery = `
SELECT COALESCE(s.assessment_id, e.assessment_id) AS assessment_id,
       COALESCE(s.student_id, e.student_id) AS student_id,
       s.raw_score,
       e.student_id IS NOT NULL AS is_excluded
FROM (SELECT student_id, assessment_id, raw_score FROM scores WHERE class_id = $1) s
FULL OUTER JOIN (SELECT student_id, assessment_id FROM exclusions WHERE class_id = $1) e
    ON e.student_id = s.student_id AND e.assessment_id = s.assessment_id`

	scoresStudentFilter = `
WHERE COALESCE(s.student_id, e.student_id) = ANY($2)`

	scoresOrder = `
ORDER BY student_id, assessment_id`

	enrollmentsQuery = `
SELECT student_id, class_id, school_id, subject
FROM enrollments
WHERE ($1 = '' OR student_id = $1)
  AND ($2 = '' OR class_id = $2)
  AND ($3 = '' OR school_id = $3)
ORDER BY created_at, student_id, class_id`
)

type GradingRepository struct {
	db *sqlx.DB
}

var _ grading.Repository = (*GradingRepository)(nil) // interface compliance check

func NewGradingRepository(db *sqlx.DB) *GradingRepository {
	return &GradingRepository{db: db}
}

func (repo *GradingRepository) QueryAssessments(ctx context.Context, classID string) ([]grading.Assessment, error) {
	assessments := make([]grading.Assessment, 0)
	if err := repo.db.SelectContext(ctx, &assessments, assessmentsQuery, classID); err != nil {
		return nil, errors.Wrap(err, "selecting assessments")
	}
	return assessments, nil
}

func (repo *GradingRepository) QueryScores(ctx context.Context, filter grading.ScoreFilter) ([]grading.ScoreRecord, error) {
	query := scoresQuery
	args := []interface{}{filter.ClassID}
	if len(filter.StudentIDs) > 0 {
		query += scoresStudentFilter
		args = append(args, pq.Array(filter.StudentIDs))
	}
	query += scoresOrder

	records := make([]grading.ScoreRecord, 0)
	if err := repo.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting scores")
	}
	return records, nil
}

func (repo *GradingRepository) QueryEnrollments(ctx context.Context, filter grading.EnrollmentFilter) ([]grading.Enrollment, error) {
	enrollments := make([]grading.Enrollment, 0)
	err := repo.db.SelectContext(ctx, &enrollments, enrollmentsQuery, filter.StudentID, filter.ClassID, filter.SchoolID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	return enrollments, nil
}
