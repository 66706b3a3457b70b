package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grading"
	inmemdb "github.com/trezcool/masomo/storage/database/inmem"
)

// NewGradingRepository returns an empty in-memory grading repository.
func NewGradingRepository(t *testing.T) *inmemdb.GradingRepository {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	return inmemdb.NewGradingRepository(db)
}

func CreateAssessment(t *testing.T, repo *inmemdb.GradingRepository, a grading.Assessment) grading.Assessment {
	a, err := repo.CreateAssessment(context.Background(), a)
	if err != nil {
		t.Fatalf("CreateAssessment() failed: %v", err)
	}
	return a
}

// SetScore records a raw score; pass a nil score for "not submitted".
func SetScore(t *testing.T, repo *inmemdb.GradingRepository, classID, studentID, assessmentID string, raw *float64) {
	if err := repo.SetScore(context.Background(), classID, studentID, assessmentID, null.Float64FromPtr(raw)); err != nil {
		t.Fatalf("SetScore() failed: %v", err)
	}
}

func Exclude(t *testing.T, repo *inmemdb.GradingRepository, classID, studentID, assessmentID string) {
	if err := repo.Exclude(context.Background(), classID, studentID, assessmentID); err != nil {
		t.Fatalf("Exclude() failed: %v", err)
	}
}

func Enroll(t *testing.T, repo *inmemdb.GradingRepository, schoolID, classID, subject string, studentIDs ...string) {
	for _, studentID := range studentIDs {
		e := grading.Enrollment{StudentID: studentID, ClassID: classID, SchoolID: schoolID, Subject: subject}
		if err := repo.Enroll(context.Background(), e); err != nil {
			t.Fatalf("Enroll() failed: %v", err)
		}
	}
}

func Score(v float64) *float64 { return &v }

type LogEntry struct {
	Level   string
	Message string
	Args    []interface{}
}

// Logger is a core.Logger keeping entries in memory.
type Logger struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Message: msg, Args: args})
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log("fatal", msg, args)
	panic(fmt.Sprintf("fatal: %s", msg))
}

// Entries returns the logged entries of the given level, all of them if level is empty.
func (l *Logger) Entries(level string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := make([]LogEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if level == "" || e.Level == level {
			entries = append(entries, e)
		}
	}
	return entries
}
