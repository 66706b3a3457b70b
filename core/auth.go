package core

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

// Roles
const (
	// Admin
	RoleAdmin          = "admin:"
	RoleAdminOwner     = "admin:owner"
	RoleAdminPrincipal = "admin:principal"

	// Teacher
	RoleTeacher = "teacher:"

	// Student
	RoleStudent = "student:"
)

var (
	AdminRoles   = []string{RoleAdmin, RoleAdminOwner, RoleAdminPrincipal}
	TeacherRoles = []string{RoleTeacher}
	StudentRoles = []string{RoleStudent}

	NowFunc = time.Now // mockable
)

// Claims represents the authorization claims transmitted via a JWT.
// Tokens are issued by the school's auth service and signed with the shared secret key.
type Claims struct {
	jwt.StandardClaims
	Username  string   `json:"username,omitempty"`
	Email     string   `json:"email,omitempty"`
	SchoolID  string   `json:"school_id,omitempty"` // empty for platform staff
	IsStudent bool     `json:"is_student,omitempty"`
	IsTeacher bool     `json:"is_teacher,omitempty"`
	IsAdmin   bool     `json:"is_admin,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

func hasAnyRole(roles []string, candidates ...string) bool {
	for _, r := range roles {
		for _, c := range candidates {
			if r == c {
				return true
			}
		}
	}
	return false
}

// NewClaims returns claims for the given subject, expiring after conf.Server.JWTExpirationDelta.
func NewClaims(conf *Config, subject, username, schoolID string, roles ...string) *Claims {
	now := NowFunc()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   subject,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username:  username,
		SchoolID:  schoolID,
		IsStudent: hasAnyRole(roles, StudentRoles...),
		IsTeacher: hasAnyRole(roles, TeacherRoles...),
		IsAdmin:   hasAnyRole(roles, AdminRoles...),
		Roles:     roles,
	}
}

// IsStaff tells whether the claims belong to a teacher or an admin.
func (c Claims) IsStaff() bool {
	return c.IsTeacher || c.IsAdmin
}

// Person returns the claims' holder, for error reports.
func (c Claims) Person() Person {
	return Person{ID: c.Subject, Username: c.Username, Email: c.Email}
}

// GenerateToken generates a signed HS256 JWT token string representing the Claims.
func GenerateToken(conf *Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}
