package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ragchat/internal/domain"
	"ragchat/internal/kv"
	"ragchat/internal/logger"
	"ragchat/internal/notify"
	"ragchat/internal/storage"
)

// ResetRequestedMessage is returned whether or not the email is registered.
const ResetRequestedMessage = "If the email is registered, a reset link has been sent."

const (
	resetKeyPrefix = "reset:"
	minPassword    = 6
	notifyTimeout  = 15 * time.Second
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{3,32}$`)

type Options struct {
	JWTSecret    string
	TokenTTL     time.Duration
	ResetTTL     time.Duration
	DefaultQuota int
	FrontendURL  string
}

// Profile is the public view of an account.
type Profile struct {
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"created_at"`
	QueryQuota int       `json:"query_quota"`
}

type Service struct {
	users    storage.UserRepo
	docs     domain.DocumentStore
	resets   kv.Store
	notifier notify.Notifier
	tokens   *tokenManager
	opts     Options
	log      *logger.Logger
}

// NewService creates the account service. Zero options take the defaults.
func NewService(users storage.UserRepo, docs domain.DocumentStore, resets kv.Store, notifier notify.Notifier, opts Options, log *logger.Logger) *Service {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = time.Hour
	}
	if opts.DefaultQuota <= 0 {
		opts.DefaultQuota = 50
	}
	return &Service{
		users:    users,
		docs:     docs,
		resets:   resets,
		notifier: notifier,
		tokens:   &tokenManager{secret: []byte(opts.JWTSecret), ttl: opts.TokenTTL, now: time.Now},
		opts:     opts,
		log:      log.With("service", "AuthService"),
	}
}

// WithClock replaces the time source used for token timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.tokens.now = now
	return s
}

// Signup validates and stores a new account with the default quota, then
// sends a best-effort welcome email.
func (s *Service) Signup(ctx context.Context, username, email, password string) error {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if err := validateUsername(username); err != nil {
		return err
	}
	if err := validateEmail(email); err != nil {
		return err
	}
	if len(password) < minPassword {
		return ErrWeakPassword
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return ErrUserExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	err = s.users.Create(ctx, &storage.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		QueryQuota:   s.opts.DefaultQuota,
	})
	if errors.Is(err, storage.ErrConflict) {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	s.log.Info("account created", "user", username)
	s.notify(ctx, notify.WelcomeMessage(email, username))
	return nil
}

// Login checks credentials and returns a signed bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}
	return s.tokens.issue(u.Username)
}

// Token issues a fresh bearer token for username, e.g. after a rename.
func (s *Service) Token(username string) (string, error) {
	return s.tokens.issue(username)
}

// Verify returns the username a token was issued for.
func (s *Service) Verify(token string) (string, error) {
	return s.tokens.verify(token)
}

// Profile returns the account details shown on the profile page.
func (s *Service) Profile(ctx context.Context, username string) (*Profile, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Profile{Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt, QueryQuota: u.QueryQuota}, nil
}

// UpdateProfile renames the account and/or changes its email. It returns the
// username in effect afterwards.
func (s *Service) UpdateProfile(ctx context.Context, username, newUsername, newEmail string) (string, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", err
	}

	newUsername = strings.TrimSpace(newUsername)
	if newUsername != "" && newUsername != username {
		if err := validateUsername(newUsername); err != nil {
			return "", err
		}
		docs, err := s.docs.ListDocuments(ctx, username)
		if err != nil {
			return "", err
		}
		// Stored vectors carry the owner in their source id.
		if len(docs) > 0 {
			return "", ErrRenameWithDocs
		}
		switch err := s.users.Rename(ctx, username, newUsername); {
		case errors.Is(err, storage.ErrConflict):
			return "", ErrUserExists
		case err != nil:
			return "", err
		}
		s.log.Info("account renamed", "user", username, "new_user", newUsername)
		username = newUsername
		u.Username = newUsername
	}

	newEmail = normalizeEmail(newEmail)
	if newEmail != "" && newEmail != u.Email {
		if err := validateEmail(newEmail); err != nil {
			return "", err
		}
		if other, err := s.users.GetByEmail(ctx, newEmail); err == nil && other.Username != username {
			return "", ErrEmailTaken
		} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return "", err
		}
		u.Email = newEmail
		if err := s.users.Update(ctx, u); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return "", ErrEmailTaken
			}
			return "", err
		}
	}

	s.notify(ctx, notify.ProfileUpdatedMessage(u.Email, username))
	return username, nil
}

// ChangePassword replaces the password after checking the old one.
func (s *Service) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	u, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrIncorrectPassword
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)) != nil {
		return ErrIncorrectPassword
	}
	if err := s.setPassword(ctx, u, newPassword); err != nil {
		return err
	}
	s.notify(ctx, notify.PasswordChangedMessage(u.Email, u.Username))
	return nil
}

// RequestReset issues a one-time reset token for the account owning email.
// Unknown addresses are not revealed to the caller.
func (s *Service) RequestReset(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return ResetRequestedMessage, nil
	}
	if err != nil {
		return "", err
	}
	token, err := newResetToken()
	if err != nil {
		return "", err
	}
	if err := s.resets.Set(ctx, resetKeyPrefix+token, []byte(u.Username), s.opts.ResetTTL); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	s.notify(ctx, notify.ResetMessage(u.Email, u.Username, s.opts.FrontendURL, token))
	return ResetRequestedMessage, nil
}

// ResetPassword consumes a reset token and sets a new password. Tokens are
// single use.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return ErrInvalidResetToken
	}
	if len(newPassword) < minPassword {
		return ErrWeakPassword
	}
	key := resetKeyPrefix + token
	raw, ok, err := s.resets.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidResetToken
	}
	if err := s.resets.Delete(ctx, key); err != nil {
		return err
	}
	u, err := s.users.GetByUsername(ctx, string(raw))
	if errors.Is(err, storage.ErrNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return err
	}
	if err := s.setPassword(ctx, u, newPassword); err != nil {
		return err
	}
	s.notify(ctx, notify.PasswordChangedMessage(u.Email, u.Username))
	return nil
}

func (s *Service) setPassword(ctx context.Context, u *storage.User, password string) error {
	if len(password) < minPassword {
		return ErrWeakPassword
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return s.users.Update(ctx, u)
}

// notify is best-effort: a delivery failure is logged and never returned.
func (s *Service) notify(ctx context.Context, msg notify.Message) {
	if s.notifier == nil || msg.To == "" {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.notifier.Send(sendCtx, msg); err != nil {
		s.log.Warn("notification failed", "subject", msg.Subject, "error", err)
	}
}

func hashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func newResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func validateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
