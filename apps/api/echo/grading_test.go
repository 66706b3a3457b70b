package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grading"
	testutil "github.com/trezcool/masomo/tests"
)

const epsilon = 1e-9

func Test_home(t *testing.T) {
	app := setup(t)
	rec := app.do(httpTest{path: "/"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Masomo Gradebook API!", rec.Body.String())
}

func Test_gradingApi_compute(t *testing.T) {
	app := setup(t)

	t.Run("grade", func(t *testing.T) {
		body := []byte(`{
			"assessments": [
				{"id": "exam", "weight": 60, "max_score": 100},
				{"id": "hw", "is_parent": true, "weight": 40},
				{"id": "hw1", "parent_id": "hw", "weight": 1, "max_score": 10}
			],
			"scores": [
				{"assessment_id": "exam", "raw_score": 90},
				{"assessment_id": "hw", "is_excluded": true},
				{"assessment_id": "hw1", "raw_score": null}
			]
		}`)
		rec := app.do(httpTest{method: http.MethodPost, path: "/v1/grades/compute", body: body})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp grading.GradeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.InDelta(t, 90, resp.Grade, epsilon)
		assert.InDelta(t, resp.Grade, resp.Breakdown.Grade, epsilon)
		assert.InDelta(t, 60, resp.Breakdown.ActiveWeight, epsilon)
		assert.Equal(t, []string{"hw"}, resp.Breakdown.Excluded)
		assert.Len(t, resp.Breakdown.Items, 1)
	})

	tests := []httpTest{
		{
			name:     "empty catalog",
			body:     []byte(`{}`),
			wantCode: http.StatusOK,
			wantData: []byte(`{"grade": 0, "breakdown": {"grade": 0, "active_weight": 0, "items": [], "excluded": []}}`),
		},
		{
			name:     "bad json",
			body:     []byte(`{"assessments": 42}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "blank ids",
			body:     []byte(`{"assessments": [{"id": " ", "weight": 100}], "scores": [{"assessment_id": ""}]}`),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{
				"assessments[0].id":       "this field cannot be blank",
				"scores[0].assessment_id": "this field cannot be blank",
			}),
		},
		{
			name:     "negative weight",
			body:     []byte(`{"assessments": [{"id": "a", "weight": -1}]}`),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"assessments[0].weight": "weight must be 0 or greater"}),
		},
		{
			name:     "malformed catalog",
			body:     []byte(`{"assessments": [{"id": "a", "weight": 100}, {"id": "c", "parent_id": "a", "weight": 1}]}`),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"c.parent_id": `parent "a" is not marked as a parent`}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/grades/compute"

		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(tt))
		})
	}
}

func Test_gradingApi_studentGrade(t *testing.T) {
	app := setup(t)
	teacher := app.token(t, "t1", "sch", core.RoleTeacher)
	forbidden := marshallObj(t, httpErr{Error: "permission denied"})

	tests := []httpTest{
		{name: "auth required", path: "/v1/classes/math/students/s1/grade", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name: "invalid token", path: "/v1/classes/math/students/s1/grade", token: "not-a-jwt",
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name: "own grade", path: "/v1/classes/math/students/s1/grade", token: app.token(t, "s1", "sch", core.RoleStudent),
			wantCode: http.StatusOK, wantData: []byte(`{"grade": 78}`),
		},
		{
			name: "someone else's grade", path: "/v1/classes/math/students/s1/grade", token: app.token(t, "s2", "sch", core.RoleStudent),
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "no roles", path: "/v1/classes/math/students/s1/grade", token: app.token(t, "s1", "sch"),
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{name: "teacher", path: "/v1/classes/math/students/s1/grade", token: teacher, wantCode: http.StatusOK, wantData: []byte(`{"grade": 78}`)},
		{name: "rescaled", path: "/v1/classes/math/students/s2/grade", token: teacher, wantCode: http.StatusOK, wantData: []byte(`{"grade": 50}`)},
		{name: "nothing recorded", path: "/v1/classes/math/students/s3/grade", token: teacher, wantCode: http.StatusOK, wantData: []byte(`{"grade": 0}`)},
		{name: "other school teacher", path: "/v1/classes/math/students/s1/grade", token: app.token(t, "t9", "other", core.RoleTeacher), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "class of no school", path: "/v1/classes/art/students/s1/grade", token: teacher, wantCode: http.StatusForbidden, wantData: forbidden},
		{
			name: "unknown class", path: "/v1/classes/art/students/s1/grade", token: app.token(t, "root", "", core.RoleAdminOwner),
			wantCode: http.StatusOK, wantData: []byte(`{"grade": 0}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(tt))
		})
	}
}

func Test_gradingApi_studentBreakdown(t *testing.T) {
	app := setup(t)
	rec := app.do(httpTest{path: "/v1/classes/math/students/s2/breakdown", token: app.token(t, "s2", "sch", core.RoleStudent)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var bd grading.Breakdown
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bd))
	assert.InDelta(t, 50, bd.Grade, epsilon)
	assert.InDelta(t, 60, bd.ActiveWeight, epsilon)
	assert.Equal(t, http.StatusForbidden,
		app.do(httpTest{path: "/v1/classes/math/students/s2/breakdown", token: app.token(t, "t9", "other", core.RoleTeacher)}).Code)
	assert.Equal(t, []string{"hw"}, bd.Excluded)
	if assert.Len(t, bd.Items, 1) {
		assert.Equal(t, "exam", bd.Items[0].AssessmentID)
		assert.Equal(t, grading.KindStandalone, bd.Items[0].Kind)
		assert.InDelta(t, 50, bd.Items[0].Contribution, epsilon)
	}
}

func Test_gradingApi_classGrades(t *testing.T) {
	app := setup(t)
	tests := []httpTest{
		{
			name: "student", path: "/v1/classes/math/grades", token: app.token(t, "s1", "sch", core.RoleStudent),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "teacher", path: "/v1/classes/math/grades", token: app.token(t, "t1", "sch", core.RoleTeacher),
			wantCode: http.StatusOK, wantData: []byte(`{"s1": 78, "s2": 50, "s3": 0}`),
		},
		{
			name: "admin", path: "/v1/classes/math/grades", token: app.token(t, "a1", "sch", core.RoleAdmin),
			wantCode: http.StatusOK, wantData: []byte(`{"s1": 78, "s2": 50, "s3": 0}`),
		},
		{
			name: "other school teacher", path: "/v1/classes/math/grades", token: app.token(t, "t9", "other", core.RoleTeacher),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "other school admin", path: "/v1/classes/math/grades", token: app.token(t, "a9", "other", core.RoleAdminPrincipal),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "platform admin", path: "/v1/classes/math/grades", token: app.token(t, "root", "", core.RoleAdminOwner),
			wantCode: http.StatusOK, wantData: []byte(`{"s1": 78, "s2": 50, "s3": 0}`),
		},
		{
			name: "empty class", path: "/v1/classes/art/grades", token: app.token(t, "root", "", core.RoleAdminOwner),
			wantCode: http.StatusOK, wantData: []byte(`{}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(tt))
		})
	}
}

func Test_gradingApi_gradebook(t *testing.T) {
	app := setup(t)
	rec := app.do(httpTest{path: "/v1/classes/math/gradebook.xlsx", token: app.token(t, "t1", "sch", core.RoleTeacher)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, xlsxMIME, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="gradebook-math.xlsx"`, rec.Header().Get("Content-Disposition"))

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("math")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Student", "Exam", "Homework", "Final grade"},
		{"s1", "80", "75", "78"},
		{"s2", "50", "EX", "50"},
		{"s3", "0", "0", "0"},
	}, rows)

	t.Run("other school", func(t *testing.T) {
		rec := app.do(httpTest{path: "/v1/classes/math/gradebook.xlsx", token: app.token(t, "t9", "other", core.RoleTeacher)})
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"})}, rec)
	})
}

func Test_gradingApi_checks(t *testing.T) {
	app := setup(t)
	testutil.CreateAssessment(t, app.repo, grading.Assessment{ID: "quiz", ClassID: "math", Weight: 10, MaxScore: 10})
	teacher := app.token(t, "t1", "sch", core.RoleTeacher)

	tests := []httpTest{
		{
			name: "weights off", path: "/v1/classes/math/checks", token: teacher, wantCode: http.StatusOK,
			wantData: marshallObj(t, []grading.Issue{{
				Field:    "weight",
				Message:  "top-level weights total 110 instead of 100",
				Severity: grading.SeverityWarning,
			}}),
		},
		{
			name: "other school", path: "/v1/classes/math/checks", token: app.token(t, "t9", "other", core.RoleTeacher),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "empty class", path: "/v1/classes/art/checks", token: app.token(t, "root", "", core.RoleAdminOwner),
			wantCode: http.StatusOK, wantData: []byte(`[]`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(tt))
		})
	}
}

func Test_gradingApi_schoolAverage(t *testing.T) {
	app := setup(t)
	admin := app.token(t, "a1", "sch", core.RoleAdminPrincipal)
	forbidden := marshallObj(t, httpErr{Error: "permission denied"})

	// (78 + 50 + 0) / 3
	want := marshallObj(t, map[string]float64{"average": 128.0 / 3})

	tests := []httpTest{
		{name: "teacher", path: "/v1/schools/sch/average", token: app.token(t, "t1", "sch", core.RoleTeacher), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "other school admin", path: "/v1/schools/sch/average", token: app.token(t, "a2", "other", core.RoleAdmin), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "school admin", path: "/v1/schools/sch/average", token: admin, wantCode: http.StatusOK, wantData: want},
		{name: "platform admin", path: "/v1/schools/sch/average", token: app.token(t, "root", "", core.RoleAdminOwner), wantCode: http.StatusOK, wantData: want},
		{name: "other school", path: "/v1/schools/other/average", token: app.token(t, "root", "", core.RoleAdminOwner), wantCode: http.StatusOK, wantData: []byte(`{"average": 0}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(tt))
		})
	}

	t.Run("cached until invalidated", func(t *testing.T) {
		testutil.SetScore(t, app.repo, "math", "s3", "exam", testutil.Score(100))
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: want},
			app.do(httpTest{path: "/v1/schools/sch/average", token: admin}))

		checkCodeAndData(t, httpTest{wantCode: http.StatusNoContent},
			app.do(httpTest{method: http.MethodDelete, path: "/v1/schools/sch/average", token: admin}))

		// s3: exam 100, homework 0 => 60
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshallObj(t, map[string]float64{"average": 188.0 / 3})},
			app.do(httpTest{path: "/v1/schools/sch/average", token: admin}))
	})
}

func Test_gradingApi_reportCard(t *testing.T) {
	app := setup(t)
	testutil.CreateAssessment(t, app.repo, grading.Assessment{ID: "geo", ClassID: "geometry", Weight: 100, MaxScore: 50})
	testutil.Enroll(t, app.repo, "sch", "geometry", "Mathematics", "s1")
	testutil.SetScore(t, app.repo, "geometry", "s1", "geo", testutil.Score(40))
	teacher := app.token(t, "t1", "sch", core.RoleTeacher)
	forbidden := marshallObj(t, httpErr{Error: "permission denied"})

	tests := []httpTest{
		{
			name: "own report card", path: "/v1/students/s1/report-card", token: app.token(t, "s1", "sch", core.RoleStudent),
			wantCode: http.StatusOK,
			wantData: []byte(`{"student_id": "s1", "subjects": [{"subject": "Mathematics", "grade": 79, "classes": 2}]}`),
		},
		{
			name: "someone else's", path: "/v1/students/s1/report-card", token: app.token(t, "s2", "sch", core.RoleStudent),
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "teacher", path: "/v1/students/s1/report-card", token: teacher,
			wantCode: http.StatusOK,
			wantData: []byte(`{"student_id": "s1", "subjects": [{"subject": "Mathematics", "grade": 79, "classes": 2}]}`),
		},
		{
			name: "other school teacher", path: "/v1/students/s1/report-card", token: app.token(t, "t9", "other", core.RoleTeacher),
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{name: "not enrolled in the school", path: "/v1/students/s9/report-card", token: teacher, wantCode: http.StatusForbidden, wantData: forbidden},
		{
			name: "not enrolled", path: "/v1/students/s9/report-card", token: app.token(t, "root", "", core.RoleAdminOwner),
			wantCode: http.StatusOK, wantData: []byte(`{"student_id": "s9", "subjects": []}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(tt))
		})
	}

	t.Run("enrolled in two schools", func(t *testing.T) {
		testutil.CreateAssessment(t, app.repo, grading.Assessment{ID: "bio", ClassID: "biology", Weight: 100, MaxScore: 10})
		testutil.Enroll(t, app.repo, "other", "biology", "Biology", "s1")
		testutil.SetScore(t, app.repo, "biology", "s1", "bio", testutil.Score(9))

		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: []byte(`{"student_id": "s1", "subjects": [{"subject": "Mathematics", "grade": 79, "classes": 2}]}`),
		}, app.do(httpTest{path: "/v1/students/s1/report-card", token: teacher}))

		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: []byte(`{"student_id": "s1", "subjects": [{"subject": "Biology", "grade": 90, "classes": 1}]}`),
		}, app.do(httpTest{path: "/v1/students/s1/report-card", token: app.token(t, "t9", "other", core.RoleTeacher)}))

		rec := app.do(httpTest{path: "/v1/students/s1/report-card", token: app.token(t, "s1", "sch", core.RoleStudent)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var card grading.ReportCard
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))
		assert.Len(t, card.Subjects, 2)
	})
}

func Test_appHTTPErrorHandler(t *testing.T) {
	conf := core.NewTestConfig()
	token, err := core.GenerateToken(conf, core.NewClaims(conf, "t1", "teach", "sch", core.RoleTeacher))
	require.NoError(t, err)

	t.Run("server error", func(t *testing.T) {
		logger := &testutil.Logger{}
		app := newTestServer(t, failingRepository{err: errDBDown}, logger)

		req, rec := newAuthRequest(http.MethodGet, "/v1/classes/math/grades", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusInternalServerError, wantData: marshallObj(t, httpErr{Error: "Internal Server Error"})}, rec)

		entries := logger.Entries("error")
		if assert.Len(t, entries, 1) {
			assert.Contains(t, entries[0].Args, core.Person{ID: "t1", Username: "teach"})
		}
		select {
		case <-app.ShutdownSignal():
			t.Error("unexpected shutdown signal")
		default:
		}
	})

	t.Run("shutdown error", func(t *testing.T) {
		app := newTestServer(t, failingRepository{err: core.NewShutdownError("integrity issue")}, &testutil.Logger{})

		req, rec := newAuthRequest(http.MethodGet, "/v1/classes/math/grades", token)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		select {
		case <-app.ShutdownSignal():
		default:
			t.Error("shutdown was not signalled")
		}
	})
}
