package core

// Logger is any service that can log/report messages.
// expected args: error, map[string]interface{}, Actor
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Actor identifies the authenticated caller of an operation.
type Actor struct {
	ID    string
	Name  string
	Email string
	Roles []string
}

func (a Actor) HasRole(roles ...string) bool {
	for _, r := range roles {
		if ContainsString(a.Roles, r) {
			return true
		}
	}
	return false
}

// Roles
const (
	RoleStudent  = "student"
	RoleTutor    = "tutor"
	RoleAssessor = "assessor"
	RoleIQA      = "iqa"
	RoleAdmin    = "admin"
)

var AllRoles = []string{RoleStudent, RoleTutor, RoleAssessor, RoleIQA, RoleAdmin}

// NopLogger discards everything, handy in tests.
type NopLogger struct{}

var _ Logger = NopLogger{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}
