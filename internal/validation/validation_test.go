package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/and161185/immob/internal/errs"
	"github.com/and161185/immob/internal/model"
)

func validRegister() model.RegisterInput {
	return model.RegisterInput{
		Email:           "test@example.com",
		Password:        "Password123!",
		ConfirmPassword: "Password123!",
		FirstName:       "Jean-Luc",
		LastName:        "Hélène",
	}
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	got := Sanitize(`<script>alert("xss")</script>`)
	if strings.ContainsAny(got, `<>"`) {
		t.Fatalf("markup survived: %q", got)
	}
	if !strings.Contains(got, "&lt;script&gt;") {
		t.Fatalf("want escaped tag, got %q", got)
	}
	if want := "&lt;script&gt;alert(&quot;xss&quot;)&lt;&#x2F;script&gt;"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	if Sanitize("") != "" {
		t.Fatalf("empty must stay empty")
	}
	if got := Sanitize("  it's  "); got != "it&#x27;s" {
		t.Fatalf("trim+quote: %q", got)
	}
	// entity output contains none of the escaped characters
	once := Sanitize("a/b")
	if Sanitize(once) != once {
		t.Fatalf("entity text should pass through unchanged: %q", Sanitize(once))
	}
}

func TestLogin_AcceptAndReject(t *testing.T) {
	t.Parallel()

	res := ValidateAndSanitize(Login, model.LoginInput{Email: "test@example.com", Password: "Password123!"})
	if !res.OK() || res.Err() != nil {
		t.Fatalf("valid credentials rejected: %+v", res.Issues)
	}
	if res.Value.Email != "test@example.com" {
		t.Fatalf("accepted value mismatch: %+v", res.Value)
	}

	res = ValidateAndSanitize(Login, model.LoginInput{Email: "invalid-email", Password: "Password123!"})
	if res.OK() {
		t.Fatalf("invalid email accepted")
	}
	if res.Value != (model.LoginInput{}) {
		t.Fatalf("rejected result must not carry a value: %+v", res.Value)
	}

	res = ValidateAndSanitize(Login, model.LoginInput{Email: "test@example.com", Password: "password123"})
	if res.OK() || res.Issues[0].Message != "password must contain at least one uppercase letter" {
		t.Fatalf("want uppercase issue, got %+v", res.Issues)
	}
}

func TestLogin_PasswordRuleOrder(t *testing.T) {
	t.Parallel()

	_, issues := Login.Parse(model.LoginInput{Email: "a@b.co", Password: "!!"})
	want := []string{
		"password must be at least 8 characters",
		"password must contain at least one uppercase letter",
		"password must contain at least one lowercase letter",
		"password must contain at least one digit",
	}
	if len(issues) != len(want) {
		t.Fatalf("issues=%+v", issues)
	}
	for i, w := range want {
		if issues[i].Field != "password" || issues[i].Message != w {
			t.Fatalf("issue[%d]=%+v, want %q", i, issues[i], w)
		}
	}
}

func TestLogin_EmailFormats(t *testing.T) {
	t.Parallel()

	good := []string{"test@example.com", "first.last+tag@sub.example.org", "o'neil@example.fr"}
	bad := []string{"", "invalid-email", ".a@example.com", "a..b@example.com", "a@example", "a@.com", "a b@example.com"}

	for _, e := range good {
		if _, is := Login.Parse(model.LoginInput{Email: e, Password: "Password123"}); len(is) != 0 {
			t.Fatalf("%q rejected: %+v", e, is)
		}
	}
	for _, e := range bad {
		if _, is := Login.Parse(model.LoginInput{Email: e, Password: "Password123"}); len(is) == 0 {
			t.Fatalf("%q accepted", e)
		}
	}

	_, is := Login.Parse(model.LoginInput{Email: "", Password: "Password123"})
	if is[0].Message != "email is required" {
		t.Fatalf("empty email must report required first: %+v", is)
	}
}

func TestRegister_Rules(t *testing.T) {
	t.Parallel()

	if _, is := Register.Parse(validRegister()); len(is) != 0 {
		t.Fatalf("valid registration rejected: %+v", is)
	}

	cases := []struct {
		name  string
		mut   func(*model.RegisterInput)
		field string
	}{
		{"mismatch", func(r *model.RegisterInput) { r.ConfirmPassword = "Password123?" }, "confirmPassword"},
		{"digits in first name", func(r *model.RegisterInput) { r.FirstName = "J0hn" }, "firstName"},
		{"first name too short", func(r *model.RegisterInput) { r.FirstName = "J" }, "firstName"},
		{"first name too long", func(r *model.RegisterInput) { r.FirstName = strings.Repeat("a", 51) }, "firstName"},
		{"punctuation in last name", func(r *model.RegisterInput) { r.LastName = "O'Neil" }, "lastName"},
		{"no special char", func(r *model.RegisterInput) { r.Password, r.ConfirmPassword = "Password123", "Password123" }, "password"},
	}
	for _, tc := range cases {
		in := validRegister()
		tc.mut(&in)
		res := ValidateAndSanitize(Register, in)
		if res.OK() {
			t.Fatalf("%s: accepted", tc.name)
		}
		if res.Issues[0].Field != tc.field {
			t.Fatalf("%s: first issue %+v, want field %s", tc.name, res.Issues[0], tc.field)
		}
	}

	in := validRegister()
	in.FirstName = strings.Repeat("é", 50)
	if _, is := Register.Parse(in); len(is) != 0 {
		t.Fatalf("50 accented letters must pass: %+v", is)
	}
}

func TestRegister_FieldFailureMasksMismatch(t *testing.T) {
	t.Parallel()

	in := validRegister()
	in.FirstName = "1"
	in.ConfirmPassword = "different"
	_, is := Register.Parse(in)
	for _, i := range is {
		if i.Field == "confirmPassword" {
			t.Fatalf("mismatch must not be evaluated while fields fail: %+v", is)
		}
	}
}

func TestMessage_Bounds(t *testing.T) {
	t.Parallel()

	res := ValidateAndSanitize(Message, model.MessageInput{Content: "  hello  "})
	if !res.OK() || res.Value.Content != "hello" {
		t.Fatalf("want trimmed accept, got %+v", res)
	}
	if ValidateAndSanitize(Message, model.MessageInput{Content: "   "}).OK() {
		t.Fatalf("blank accepted")
	}
	if !ValidateAndSanitize(Message, model.MessageInput{Content: strings.Repeat("x", 1000)}).OK() {
		t.Fatalf("1000 chars rejected")
	}
	if ValidateAndSanitize(Message, model.MessageInput{Content: strings.Repeat("x", 1001)}).OK() {
		t.Fatalf("1001 chars accepted")
	}
}

func TestPropertySearch_Bounds(t *testing.T) {
	t.Parallel()

	n := func(v int) *int { return &v }
	if !ValidateAndSanitize(PropertySearch, model.PropertySearch{}).OK() {
		t.Fatalf("empty search rejected")
	}
	if !ValidateAndSanitize(PropertySearch, model.PropertySearch{Destination: "Paris", Guests: n(20)}).OK() {
		t.Fatalf("valid search rejected")
	}
	if ValidateAndSanitize(PropertySearch, model.PropertySearch{Guests: n(0)}).OK() {
		t.Fatalf("0 guests accepted")
	}
	if ValidateAndSanitize(PropertySearch, model.PropertySearch{Guests: n(21)}).OK() {
		t.Fatalf("21 guests accepted")
	}
	if ValidateAndSanitize(PropertySearch, model.PropertySearch{Destination: strings.Repeat("d", 101)}).OK() {
		t.Fatalf("long destination accepted")
	}
}

func TestError_UnwrapsToSentinel(t *testing.T) {
	t.Parallel()

	err := ValidateAndSanitize(Login, model.LoginInput{}).Err()
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
	var ve *Error
	if !errors.As(err, &ve) || ve.First() != "email is required" {
		t.Fatalf("want *Error with first message, got %v", err)
	}
	if (&Error{}).First() == "" {
		t.Fatalf("empty error must still have a message")
	}
}
