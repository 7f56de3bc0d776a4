package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/and161185/immob/internal/model"
)

// Limits shared by the schemas.
const (
	PasswordMinLen    = 8
	NameMinLen        = 2
	NameMaxLen        = 50
	MessageMaxLen     = 1000
	DestinationMaxLen = 100
	GuestsMin         = 1
	GuestsMax         = 20
)

var (
	emailRe   = regexp.MustCompile(`^[A-Za-z0-9_'+\-.]*[A-Za-z0-9_+\-]@([A-Za-z0-9][A-Za-z0-9\-]*\.)+[A-Za-z]{2,}$`)
	upperRe   = regexp.MustCompile(`[A-Z]`)
	lowerRe   = regexp.MustCompile(`[a-z]`)
	digitRe   = regexp.MustCompile(`[0-9]`)
	specialRe = regexp.MustCompile(`[^A-Za-z0-9]`)
	nameRe    = regexp.MustCompile(`^[a-zA-ZÀ-ÿ\s-]+$`)
)

// Schemas exposed to callers.
var (
	Login          Schema[model.LoginInput]     = LoginSchema{}
	Register       Schema[model.RegisterInput]  = RegisterSchema{}
	Message        Schema[model.MessageInput]   = MessageSchema{}
	PropertySearch Schema[model.PropertySearch] = PropertySearchSchema{}
)

func runes(s string) int { return utf8.RuneCountInString(s) }

func isEmail(s string) bool {
	if strings.HasPrefix(s, ".") || strings.Contains(s, "..") {
		return false
	}
	return emailRe.MatchString(s)
}

func emailRules() []rule {
	return []rule{
		{ok: func(s string) bool { return s != "" }, msg: "email is required"},
		{ok: isEmail, msg: "invalid email address"},
	}
}

func passwordRules() []rule {
	return []rule{
		{ok: func(s string) bool { return runes(s) >= PasswordMinLen }, msg: "password must be at least 8 characters"},
		{ok: upperRe.MatchString, msg: "password must contain at least one uppercase letter"},
		{ok: lowerRe.MatchString, msg: "password must contain at least one lowercase letter"},
		{ok: digitRe.MatchString, msg: "password must contain at least one digit"},
	}
}

func nameRules(label string) []rule {
	return []rule{
		{ok: func(s string) bool { return runes(s) >= NameMinLen }, msg: label + " must be at least 2 characters"},
		{ok: func(s string) bool { return runes(s) <= NameMaxLen }, msg: label + " cannot exceed 50 characters"},
		{ok: nameRe.MatchString, msg: label + " may only contain letters"},
	}
}

// LoginSchema accepts a plausible email and a password of at least eight
// characters with upper case, lower case and a digit.
type LoginSchema struct{}

// Parse implements Schema.
func (LoginSchema) Parse(in model.LoginInput) (model.LoginInput, []Issue) {
	var issues []Issue
	issues = append(issues, check("email", in.Email, emailRules()...)...)
	issues = append(issues, check("password", in.Password, passwordRules()...)...)
	return in, issues
}

// RegisterSchema extends the login password rules with a special character
// and adds name rules and password confirmation.
type RegisterSchema struct{}

// Parse implements Schema. The confirmation is compared only once every
// field rule has passed, so a field failure is never masked by a mismatch.
func (RegisterSchema) Parse(in model.RegisterInput) (model.RegisterInput, []Issue) {
	var issues []Issue
	issues = append(issues, check("email", in.Email, emailRules()...)...)
	pw := append(passwordRules(), rule{ok: specialRe.MatchString, msg: "password must contain at least one special character"})
	issues = append(issues, check("password", in.Password, pw...)...)
	issues = append(issues, check("firstName", in.FirstName, nameRules("first name")...)...)
	issues = append(issues, check("lastName", in.LastName, nameRules("last name")...)...)
	if len(issues) > 0 {
		return in, issues
	}
	if in.Password != in.ConfirmPassword {
		return in, []Issue{{Field: "confirmPassword", Message: "passwords do not match"}}
	}
	return in, nil
}

// MessageSchema accepts content of 1..1000 characters after trimming.
// The accepted value carries the trimmed content.
type MessageSchema struct{}

// Parse implements Schema.
func (MessageSchema) Parse(in model.MessageInput) (model.MessageInput, []Issue) {
	in.Content = strings.TrimSpace(in.Content)
	issues := check("content", in.Content,
		rule{ok: func(s string) bool { return runes(s) >= 1 }, msg: "message cannot be empty"},
		rule{ok: func(s string) bool { return runes(s) <= MessageMaxLen }, msg: "message cannot exceed 1000 characters"},
	)
	return in, issues
}

// PropertySearchSchema bounds the optional search fields.
type PropertySearchSchema struct{}

// Parse implements Schema.
func (PropertySearchSchema) Parse(in model.PropertySearch) (model.PropertySearch, []Issue) {
	var issues []Issue
	if runes(in.Destination) > DestinationMaxLen {
		issues = append(issues, Issue{Field: "destination", Message: "destination cannot exceed 100 characters"})
	}
	if in.Guests != nil {
		switch g := *in.Guests; {
		case g < GuestsMin:
			issues = append(issues, Issue{Field: "guests", Message: "guests must be at least 1"})
		case g > GuestsMax:
			issues = append(issues, Issue{Field: "guests", Message: "guests cannot exceed 20"})
		}
	}
	return in, issues
}
