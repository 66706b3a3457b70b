package grading

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
)

var (
	// errors
	ErrInvalidArgument = errors.New("invalid argument")
)

type (
	// Repository is the read side of assessment, score and enrollment storage.
	Repository interface {
		QueryAssessments(ctx context.Context, classID string) ([]Assessment, error)
		// QueryScores returns one record per (student, assessment) that has a score or an exclusion.
		// IsExcluded is derived from the per-student exclusion records.
		QueryScores(ctx context.Context, filter ScoreFilter) ([]ScoreRecord, error)
		QueryEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)
	}

	Service struct {
		repo     Repository
		cache    core.Cache
		logger   core.Logger
		cacheTTL time.Duration
	}
)

func NewService(repo Repository, cache core.Cache, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		logger:   logger,
		cacheTTL: conf.Cache.TTL,
	}
}

func schoolAverageKey(schoolID string) string {
	return "school-average:" + schoolID
}

func requireArgs(args ...string) error {
	var flds []core.FieldError
	for i := 0; i+1 < len(args); i += 2 {
		if core.CleanString(args[i+1]) == "" {
			flds = append(flds, core.FieldError{Field: args[i], Error: "this field is required"})
		}
	}
	if flds != nil {
		return core.NewValidationError(ErrInvalidArgument, flds...)
	}
	return nil
}

func (svc *Service) queryAssessments(ctx context.Context, classID string) ([]Assessment, error) {
	assessments, err := svc.repo.QueryAssessments(ctx, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying assessments")
	}
	for _, iss := range CheckCatalog(assessments) {
		if iss.Severity == SeverityError {
			svc.logger.Warn("malformed assessment catalog", map[string]interface{}{
				"class_id":      classID,
				"assessment_id": iss.AssessmentID,
				"field":         iss.Field,
				"issue":         iss.Message,
			})
		}
	}
	return assessments, nil
}

func (svc *Service) queryScores(ctx context.Context, classID string, studentIDs ...string) ([]ScoreRecord, error) {
	scores, err := svc.repo.QueryScores(ctx, ScoreFilter{ClassID: classID, StudentIDs: studentIDs})
	if err != nil {
		return nil, errors.Wrap(err, "querying scores")
	}
	return scores, nil
}

// StudentGrade returns a student's final grade in a class.
func (svc *Service) StudentGrade(ctx context.Context, classID, studentID string) (float64, error) {
	if err := requireArgs("class_id", classID, "student_id", studentID); err != nil {
		return 0, err
	}
	assessments, err := svc.queryAssessments(ctx, classID)
	if err != nil {
		return 0, err
	}
	scores, err := svc.queryScores(ctx, classID, studentID)
	if err != nil {
		return 0, err
	}
	return ComputeGrade(assessments, scores), nil
}

// StudentBreakdown returns a student's final grade in a class along with how it was reached.
func (svc *Service) StudentBreakdown(ctx context.Context, classID, studentID string) (Breakdown, error) {
	if err := requireArgs("class_id", classID, "student_id", studentID); err != nil {
		return Breakdown{}, err
	}
	assessments, err := svc.queryAssessments(ctx, classID)
	if err != nil {
		return Breakdown{}, err
	}
	scores, err := svc.queryScores(ctx, classID, studentID)
	if err != nil {
		return Breakdown{}, err
	}
	return ComputeBreakdown(assessments, scores), nil
}

// classStudents lists enrolled students first (in enrollment order), then students that only have score rows.
func (svc *Service) classStudents(ctx context.Context, classID string, scores []ScoreRecord) ([]string, error) {
	enrollments, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{ClassID: classID})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	seen := make(map[string]bool, len(enrollments))
	students := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		if !seen[e.StudentID] {
			seen[e.StudentID] = true
			students = append(students, e.StudentID)
		}
	}
	for _, s := range scores {
		if !seen[s.StudentID] {
			seen[s.StudentID] = true
			students = append(students, s.StudentID)
		}
	}
	return students, nil
}

func (svc *Service) enrollmentSchools(ctx context.Context, filter EnrollmentFilter) ([]string, error) {
	enrollments, err := svc.repo.QueryEnrollments(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	seen := make(map[string]bool)
	schools := make([]string, 0, 1)
	for _, e := range enrollments {
		if !seen[e.SchoolID] {
			seen[e.SchoolID] = true
			schools = append(schools, e.SchoolID)
		}
	}
	return schools, nil
}

// ClassSchools returns the schools of the students enrolled in a class, in enrollment order.
// A class without enrollments belongs to no school.
func (svc *Service) ClassSchools(ctx context.Context, classID string) ([]string, error) {
	if err := requireArgs("class_id", classID); err != nil {
		return nil, err
	}
	return svc.enrollmentSchools(ctx, EnrollmentFilter{ClassID: classID})
}

// StudentSchools returns the schools a student is enrolled in.
func (svc *Service) StudentSchools(ctx context.Context, studentID string) ([]string, error) {
	if err := requireArgs("student_id", studentID); err != nil {
		return nil, err
	}
	return svc.enrollmentSchools(ctx, EnrollmentFilter{StudentID: studentID})
}

// ClassGrades grades every student of a class, including enrolled students without any score yet.
func (svc *Service) ClassGrades(ctx context.Context, classID string) (map[string]float64, error) {
	if err := requireArgs("class_id", classID); err != nil {
		return nil, err
	}
	assessments, err := svc.queryAssessments(ctx, classID)
	if err != nil {
		return nil, err
	}
	scores, err := svc.queryScores(ctx, classID)
	if err != nil {
		return nil, err
	}
	students, err := svc.classStudents(ctx, classID, scores)
	if err != nil {
		return nil, err
	}

	grades := ComputeBulk(assessments, scores)
	for _, studentID := range students {
		if _, ok := grades[studentID]; !ok {
			grades[studentID] = ComputeGrade(assessments, nil)
		}
	}
	return grades, nil
}

// ClassBreakdowns returns the class's assessments and a breakdown per student, as used by the gradebook export.
func (svc *Service) ClassBreakdowns(ctx context.Context, classID string) ([]Assessment, map[string]Breakdown, error) {
	if err := requireArgs("class_id", classID); err != nil {
		return nil, nil, err
	}
	assessments, err := svc.queryAssessments(ctx, classID)
	if err != nil {
		return nil, nil, err
	}
	scores, err := svc.queryScores(ctx, classID)
	if err != nil {
		return nil, nil, err
	}
	students, err := svc.classStudents(ctx, classID, scores)
	if err != nil {
		return nil, nil, err
	}

	byStudent := make(map[string][]ScoreRecord, len(students))
	for _, s := range scores {
		byStudent[s.StudentID] = append(byStudent[s.StudentID], s)
	}
	breakdowns := make(map[string]Breakdown, len(students))
	for _, studentID := range students {
		breakdowns[studentID] = ComputeBreakdown(assessments, byStudent[studentID])
	}
	return assessments, breakdowns, nil
}

// SchoolAverage averages the grades of every (student, class) enrollment of a school.
// Results are cached for the configured TTL; a failing cache is logged and bypassed.
func (svc *Service) SchoolAverage(ctx context.Context, schoolID string) (float64, error) {
	if err := requireArgs("school_id", schoolID); err != nil {
		return 0, err
	}

	key := schoolAverageKey(schoolID)
	if raw, ok, err := svc.cache.Get(ctx, key); err != nil {
		svc.logger.Error("reading school average from cache", errors.Wrap(err, key))
	} else if ok {
		if avg, err := strconv.ParseFloat(string(raw), 64); err == nil {
			return avg, nil
		}
	}

	enrollments, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{SchoolID: schoolID})
	if err != nil {
		return 0, errors.Wrap(err, "querying enrollments")
	}

	classIDs := make([]string, 0)
	classStudents := make(map[string][]string)
	for _, e := range enrollments {
		if _, ok := classStudents[e.ClassID]; !ok {
			classIDs = append(classIDs, e.ClassID)
		}
		classStudents[e.ClassID] = append(classStudents[e.ClassID], e.StudentID)
	}

	var sum float64
	var count int
	for _, classID := range classIDs {
		assessments, err := svc.queryAssessments(ctx, classID)
		if err != nil {
			return 0, err
		}
		scores, err := svc.queryScores(ctx, classID, classStudents[classID]...)
		if err != nil {
			return 0, err
		}
		grades := ComputeBulk(assessments, scores)
		for _, studentID := range classStudents[classID] {
			grade, ok := grades[studentID]
			if !ok {
				grade = ComputeGrade(assessments, nil)
			}
			sum += grade
			count++
		}
	}

	var avg float64
	if count > 0 {
		avg = sum / float64(count)
	}
	if err := svc.cache.Set(ctx, key, []byte(strconv.FormatFloat(avg, 'g', -1, 64)), svc.cacheTTL); err != nil {
		svc.logger.Error("writing school average to cache", errors.Wrap(err, key))
	}
	return avg, nil
}

// InvalidateSchoolAverage drops the cached average of a school, eg. after scores changed.
func (svc *Service) InvalidateSchoolAverage(ctx context.Context, schoolID string) error {
	if err := requireArgs("school_id", schoolID); err != nil {
		return err
	}
	return errors.Wrap(svc.cache.Invalidate(ctx, schoolAverageKey(schoolID)), "invalidating school average")
}

// ReportCard grades a student in every class they are enrolled in and averages
// the classes sharing the same subject label.
// An empty schoolID covers the enrollments of every school.
func (svc *Service) ReportCard(ctx context.Context, studentID, schoolID string) (ReportCard, error) {
	if err := requireArgs("student_id", studentID); err != nil {
		return ReportCard{}, err
	}
	enrollments, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{StudentID: studentID, SchoolID: schoolID})
	if err != nil {
		return ReportCard{}, errors.Wrap(err, "querying enrollments")
	}

	bySubject := make(map[string]*SubjectGrade)
	for _, e := range enrollments {
		grade, err := svc.StudentGrade(ctx, e.ClassID, studentID)
		if err != nil {
			return ReportCard{}, errors.Wrapf(err, "grading class %s", e.ClassID)
		}
		sg, ok := bySubject[e.Subject]
		if !ok {
			sg = &SubjectGrade{Subject: e.Subject}
			bySubject[e.Subject] = sg
		}
		sg.Grade += grade // summed until averaged below
		sg.Classes++
	}

	card := ReportCard{StudentID: studentID, Subjects: make([]SubjectGrade, 0, len(bySubject))}
	for _, sg := range bySubject {
		sg.Grade /= float64(sg.Classes)
		card.Subjects = append(card.Subjects, *sg)
	}
	sort.Slice(card.Subjects, func(i, j int) bool { return card.Subjects[i].Subject < card.Subjects[j].Subject })
	return card, nil
}

// CheckClass runs the catalog checks on a class's assessments.
func (svc *Service) CheckClass(ctx context.Context, classID string) ([]Issue, error) {
	if err := requireArgs("class_id", classID); err != nil {
		return nil, err
	}
	assessments, err := svc.repo.QueryAssessments(ctx, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying assessments")
	}
	return CheckCatalog(assessments), nil
}
