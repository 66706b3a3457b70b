package inmemdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo/core/grading"
)

var ErrAssessmentExists = errors.New("an assessment with this id already exists")

type GradingRepository struct {
	db *gradingTables
}

var _ grading.Repository = (*GradingRepository)(nil) // interface compliance check

func NewGradingRepository(db *DB) *GradingRepository {
	return &GradingRepository{db: db.grading}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (repo *GradingRepository) QueryAssessments(_ context.Context, classID string) ([]grading.Assessment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	assessments := make([]grading.Assessment, 0)
	for _, id := range repo.db.assessmentOrder {
		if a := repo.db.assessments[id]; a.ClassID == classID {
			assessments = append(assessments, a)
		}
	}
	return assessments, nil
}

func (repo *GradingRepository) QueryScores(_ context.Context, filter grading.ScoreFilter) ([]grading.ScoreRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	records := make([]grading.ScoreRecord, 0)
	for _, key := range repo.db.recordOrder {
		if len(filter.StudentIDs) > 0 && !contains(filter.StudentIDs, key.studentID) {
			continue
		}
		row, scored := repo.db.scores[key]
		exclClassID, excluded := repo.db.exclusions[key]
		classID := row.classID
		if !scored {
			classID = exclClassID
		}
		if !(scored || excluded) || classID != filter.ClassID {
			continue
		}
		records = append(records, grading.ScoreRecord{
			AssessmentID: key.assessmentID,
			StudentID:    key.studentID,
			RawScore:     row.rawScore,
			IsExcluded:   excluded,
		})
	}
	return records, nil
}

func (repo *GradingRepository) QueryEnrollments(_ context.Context, filter grading.EnrollmentFilter) ([]grading.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	enrollments := make([]grading.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		if (filter.StudentID != "" && e.StudentID != filter.StudentID) ||
			(filter.ClassID != "" && e.ClassID != filter.ClassID) ||
			(filter.SchoolID != "" && e.SchoolID != filter.SchoolID) {
			continue
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, nil
}

// CreateAssessment stores a new assessment, generating its ID if missing.
func (repo *GradingRepository) CreateAssessment(_ context.Context, a grading.Assessment) (grading.Assessment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if _, ok := repo.db.assessments[a.ID]; ok {
		return grading.Assessment{}, ErrAssessmentExists
	}
	repo.db.assessments[a.ID] = a
	repo.db.assessmentOrder = append(repo.db.assessmentOrder, a.ID)
	return a, nil
}

func (repo *GradingRepository) touch(key scoreKey) {
	if !repo.db.recorded[key] {
		repo.db.recorded[key] = true
		repo.db.recordOrder = append(repo.db.recordOrder, key)
	}
}

// SetScore records (or overwrites) a student's raw score. A null score means not submitted.
func (repo *GradingRepository) SetScore(_ context.Context, classID, studentID, assessmentID string, raw null.Float64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := scoreKey{studentID: studentID, assessmentID: assessmentID}
	repo.touch(key)
	repo.db.scores[key] = scoreRow{classID: classID, rawScore: raw}
	return nil
}

// Exclude exempts a student from an assessment.
func (repo *GradingRepository) Exclude(_ context.Context, classID, studentID, assessmentID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := scoreKey{studentID: studentID, assessmentID: assessmentID}
	repo.touch(key)
	repo.db.exclusions[key] = classID
	return nil
}

// Include removes a student's exemption from an assessment.
func (repo *GradingRepository) Include(_ context.Context, studentID, assessmentID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.exclusions, scoreKey{studentID: studentID, assessmentID: assessmentID})
	return nil
}

func (repo *GradingRepository) Enroll(_ context.Context, e grading.Enrollment) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.enrollments {
		if existing.StudentID == e.StudentID && existing.ClassID == e.ClassID {
			return nil
		}
	}
	repo.db.enrollments = append(repo.db.enrollments, e)
	return nil
}
