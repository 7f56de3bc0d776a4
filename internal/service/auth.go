package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/immob/internal/errs"
	"github.com/and161185/immob/internal/limiter"
	"github.com/and161185/immob/internal/model"
	"github.com/and161185/immob/internal/repository"
	"github.com/and161185/immob/internal/validation"
)

// User-facing failure messages.
const (
	msgLoginFailed    = "login failed, please try again"
	msgRegisterFailed = "registration failed, please try again"
)

// AuthService is the session store: the single owner of AuthState.
type AuthService interface {
	// Login throttles, validates and signs the user in.
	Login(ctx context.Context, in model.LoginInput) error
	// Register validates and signs a new, unverified user in.
	Register(ctx context.Context, in model.RegisterInput) error
	// Logout clears the session and the login budget.
	Logout(ctx context.Context) error
	// UpdateProfile merges sanitized name/email changes into the current user.
	UpdateProfile(ctx context.Context, upd model.ProfileUpdate) error
	// CheckSession reports whether a live session exists, logging out an expired one.
	CheckSession(ctx context.Context) bool
	// NeedsRefresh reports whether the session ends within the refresh threshold.
	NeedsRefresh() bool
	// ClearError drops the pending error message.
	ClearError()
	// Snapshot returns a copy of the current state.
	Snapshot() model.AuthState
}

// Sealer encrypts generated identifiers.
type Sealer interface {
	Seal(plaintext string) (string, error)
}

// SessionPolicy holds session lifetimes.
type SessionPolicy struct {
	Duration         time.Duration
	RefreshThreshold time.Duration
}

type AuthServiceImpl struct {
	repo    repository.SessionRepository
	lim     *limiter.Window
	ids     Sealer
	backend Backend
	policy  SessionPolicy
	now     func() time.Time
	log     *zap.Logger

	mu       sync.Mutex
	state    model.AuthState
	epoch    uint64 // bumped by logout; invalidates in-flight sign-ins
	inFlight bool
}

var _ AuthService = (*AuthServiceImpl)(nil)

// NewAuthService constructs the session store and restores a persisted
// session. An unreadable record is logged and discarded.
func NewAuthService(ctx context.Context, repo repository.SessionRepository, lim *limiter.Window, ids Sealer, backend Backend, policy SessionPolicy, opts ...Option) *AuthServiceImpl {
	o := buildOptions(opts)
	s := &AuthServiceImpl{
		repo:    repo,
		lim:     lim,
		ids:     ids,
		backend: backend,
		policy:  policy,
		now:     o.now,
		log:     o.log,
	}

	u, err := repo.Load(ctx)
	if err != nil {
		s.log.Warn("discarding persisted session", zap.Error(err))
		if cerr := repo.Clear(ctx); cerr != nil {
			s.log.Warn("clear persisted session", zap.Error(cerr))
		}
		return s
	}
	s.state = model.AuthState{User: u, IsAuthenticated: u != nil}
	return s
}

// Login signs in with email and password. The login limiter is consulted
// before validation; neither rejection enters the loading state.
func (s *AuthServiceImpl) Login(ctx context.Context, in model.LoginInput) error {
	if !s.claim() {
		return errs.ErrBusy
	}
	defer s.release()

	if err := Gate(ctx, s.lim, limiter.KeyLogin, "login attempts", s.log); err != nil {
		var rl *RateLimitError
		if errors.As(err, &rl) {
			s.setError(rl.Error())
			return err
		}
		s.log.Error("login limiter", zap.Error(err))
		s.setError(msgLoginFailed)
		return &failure{msg: msgLoginFailed, cause: err}
	}

	res := validation.ValidateAndSanitize(validation.Login, in)
	if !res.OK() {
		return s.reject("login", res.Err())
	}

	return s.signIn(ctx, "login", msgLoginFailed, func() *model.User {
		email := validation.Sanitize(res.Value.Email)
		first, _, _ := strings.Cut(email, "@")
		return &model.User{
			Email:     email,
			FirstName: first,
			LastName:  "User",
			Verified:  true,
		}
	})
}

// Register signs in a new user after the registration schema accepts in.
func (s *AuthServiceImpl) Register(ctx context.Context, in model.RegisterInput) error {
	if !s.claim() {
		return errs.ErrBusy
	}
	defer s.release()

	res := validation.ValidateAndSanitize(validation.Register, in)
	if !res.OK() {
		return s.reject("register", res.Err())
	}

	return s.signIn(ctx, "register", msgRegisterFailed, func() *model.User {
		return &model.User{
			Email:     validation.Sanitize(res.Value.Email),
			FirstName: validation.Sanitize(res.Value.FirstName),
			LastName:  validation.Sanitize(res.Value.LastName),
			Verified:  false,
		}
	})
}

// signIn runs the loading phase shared by login and register: round trip,
// user synthesis, persistence and commit.
func (s *AuthServiceImpl) signIn(ctx context.Context, op, failMsg string, build func() *model.User) error {
	s.mu.Lock()
	epoch := s.epoch
	s.state.IsLoading = true
	s.state.Error = ""
	s.mu.Unlock()

	fail := func(cause error) error {
		s.mu.Lock()
		if s.epoch == epoch {
			s.state.IsLoading = false
			s.state.Error = failMsg
		}
		s.mu.Unlock()
		return &failure{msg: failMsg, cause: cause}
	}

	if err := s.roundTrip(ctx, op); err != nil {
		s.log.Warn("backend round trip failed", zap.String("op", op), zap.Error(err))
		return fail(err)
	}

	u := build()
	u.ID = s.newID()
	u.Role = model.RoleGuest
	now := s.now()
	u.CreatedAt = now
	u.SessionExpiry = now.Add(s.policy.Duration)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		s.log.Info("discarding sign-in result after logout", zap.String("op", op))
		return &failure{msg: failMsg, cause: errors.New("session ended during " + op)}
	}
	if err := s.repo.Save(ctx, u); err != nil {
		s.log.Error("persist session", zap.Error(err))
		s.state.IsLoading = false
		s.state.Error = failMsg
		return &failure{msg: failMsg, cause: fmt.Errorf("persist session: %w", err)}
	}
	s.state = model.AuthState{User: u, IsAuthenticated: true}
	return nil
}

// roundTrip calls the backend, converting a panic into an error.
func (s *AuthServiceImpl) roundTrip(ctx context.Context, op string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic",
				zap.Any("reason", r),
				zap.ByteString("stack", debug.Stack()),
				zap.String("op", op),
			)
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	return s.backend.RoundTrip(ctx)
}

// newID returns an encrypted random identifier. When encryption is
// unavailable the raw identifier is used.
func (s *AuthServiceImpl) newID() string {
	raw := uuid.Must(uuid.NewV4()).String()
	id, err := s.ids.Seal(raw)
	if err != nil {
		s.log.Warn("identifier left unencrypted", zap.Error(err))
		return raw
	}
	return id
}

func (s *AuthServiceImpl) reject(op string, err error) error {
	var ve *validation.Error
	if errors.As(err, &ve) {
		s.log.Info("validation rejected", zap.String("op", op), zap.Int("issues", len(ve.Issues)))
		s.setError(ve.First())
	}
	return err
}

// Logout clears the user, the persisted record and the login budget.
// Storage failures are reported but the in-memory state is always cleared.
func (s *AuthServiceImpl) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logoutLocked(ctx)
}

func (s *AuthServiceImpl) logoutLocked(ctx context.Context) error {
	s.epoch++
	s.state = model.AuthState{}
	err := errors.Join(s.repo.Clear(ctx), s.lim.Reset(ctx, limiter.KeyLogin))
	if err != nil {
		s.log.Warn("logout cleanup", zap.Error(err))
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// UpdateProfile merges the non-empty fields of upd, each sanitized.
func (s *AuthServiceImpl) UpdateProfile(ctx context.Context, upd model.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.User == nil {
		return errs.ErrNoCurrentUser
	}
	u := *s.state.User
	apply := func(dst *string, v *string) {
		if v != nil && *v != "" {
			*dst = validation.Sanitize(*v)
		}
	}
	apply(&u.FirstName, upd.FirstName)
	apply(&u.LastName, upd.LastName)
	apply(&u.Email, upd.Email)

	if err := s.repo.Save(ctx, &u); err != nil {
		return fmt.Errorf("persist profile: %w", err)
	}
	s.state.User = &u
	return nil
}

// CheckSession never blocks on anything but the store mutex and storage.
func (s *AuthServiceImpl) CheckSession(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.User == nil {
		return false
	}
	if s.state.User.Expired(s.now()) {
		s.log.Info("session expired")
		_ = s.logoutLocked(ctx)
		return false
	}
	return true
}

func (s *AuthServiceImpl) NeedsRefresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.User == nil {
		return false
	}
	return s.state.User.SessionExpiry.Sub(s.now()) < s.policy.RefreshThreshold
}

func (s *AuthServiceImpl) ClearError() { s.setError("") }

func (s *AuthServiceImpl) Snapshot() model.AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

func (s *AuthServiceImpl) setError(msg string) {
	s.mu.Lock()
	s.state.Error = msg
	s.mu.Unlock()
}

func (s *AuthServiceImpl) claim() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return false
	}
	s.inFlight = true
	return true
}

func (s *AuthServiceImpl) release() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}
