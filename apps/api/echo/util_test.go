package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grading"
	cachesvc "github.com/trezcool/masomo/services/cache"
	inmemdb "github.com/trezcool/masomo/storage/database/inmem"
	testutil "github.com/trezcool/masomo/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

type testApp struct {
	*Server
	conf   *core.Config
	repo   *inmemdb.GradingRepository
	logger *testutil.Logger
}

func newTestServer(t *testing.T, repo grading.Repository, logger *testutil.Logger) *Server {
	conf := core.NewTestConfig()
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	svc := grading.NewService(repo, cachesvc.NewMemory(), logger, conf)
	s := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		GradingSvc: svc,
		Validate:   validate,
		Translator: translator,
	})
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// setup seeds the "math" class of school "sch":
//
//	exam (60pts, /100) and homework (40pts) made of hw1 and hw2 (50pts each, /20)
//	s1: exam 80, hw1 20, hw2 10 => 78
//	s2: exam 50, homework excluded => 50
//	s3: enrolled, nothing recorded => 0
func setup(t *testing.T) *testApp {
	repo := testutil.NewGradingRepository(t)
	logger := &testutil.Logger{}

	testutil.CreateAssessment(t, repo, grading.Assessment{ID: "exam", ClassID: "math", Name: "Exam", Weight: 60, MaxScore: 100})
	testutil.CreateAssessment(t, repo, grading.Assessment{ID: "hw", ClassID: "math", Name: "Homework", IsParent: true, Weight: 40})
	testutil.CreateAssessment(t, repo, grading.Assessment{ID: "hw1", ClassID: "math", ParentID: null.StringFrom("hw"), Weight: 50, MaxScore: 20})
	testutil.CreateAssessment(t, repo, grading.Assessment{ID: "hw2", ClassID: "math", ParentID: null.StringFrom("hw"), Weight: 50, MaxScore: 20})
	testutil.Enroll(t, repo, "sch", "math", "Mathematics", "s1", "s2", "s3")
	testutil.SetScore(t, repo, "math", "s1", "exam", testutil.Score(80))
	testutil.SetScore(t, repo, "math", "s1", "hw1", testutil.Score(20))
	testutil.SetScore(t, repo, "math", "s1", "hw2", testutil.Score(10))
	testutil.SetScore(t, repo, "math", "s2", "exam", testutil.Score(50))
	testutil.Exclude(t, repo, "math", "s2", "hw")

	return &testApp{
		Server: newTestServer(t, repo, logger),
		conf:   core.NewTestConfig(),
		repo:   repo,
		logger: logger,
	}
}

func (app *testApp) token(t *testing.T, subject, schoolID string, roles ...string) string {
	ss, err := core.GenerateToken(app.conf, core.NewClaims(app.conf, subject, subject, schoolID, roles...))
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}
	return ss
}

func (app *testApp) do(tt httpTest) *httptest.ResponseRecorder {
	if tt.method == "" {
		tt.method = http.MethodGet
	}
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	app.ServeHTTP(rec, req)
	return rec
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// failingRepository fails every query with err.
type failingRepository struct {
	err error
}

var _ grading.Repository = failingRepository{}

func (r failingRepository) QueryAssessments(context.Context, string) ([]grading.Assessment, error) {
	return nil, r.err
}

func (r failingRepository) QueryScores(context.Context, grading.ScoreFilter) ([]grading.ScoreRecord, error) {
	return nil, r.err
}

func (r failingRepository) QueryEnrollments(context.Context, grading.EnrollmentFilter) ([]grading.Enrollment, error) {
	return nil, r.err
}

var errDBDown = errors.New("connection refused")
