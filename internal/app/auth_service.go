package app

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"studybot/internal/model"
	"studybot/internal/pkg/jwtutil"
	"studybot/internal/repository"
)

const (
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes
	maxPasswordBytes = 72
	maxNameLen       = 64
)

// AuthService owns learner accounts and issues the bearer tokens the API
// accepts.
type AuthService struct {
	users    *repository.UserRepository
	secret   string
	tokenTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

type RegisterInput struct {
	Email      string
	Password   string
	FirstName  string
	LastName   string
	ProfilePic string
}

type LoginInput struct {
	Email    string
	Password string
}

// Session is what a learner gets back from sign-up and login.
type Session struct {
	Token       string      `json:"token"`
	ExpiresAt   time.Time   `json:"expires_at"`
	DisplayName string      `json:"display_name"`
	User        *model.User `json:"user"`
}

func NewAuthService(users *repository.UserRepository, secret string, tokenTTL time.Duration, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:    users,
		secret:   secret,
		tokenTTL: tokenTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// Register creates the account and signs the learner in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	email, ok := normalizeEmail(input.Email)
	if !ok || !validPassword(input.Password) {
		return nil, ErrInvalidInput
	}
	first, last := strings.TrimSpace(input.FirstName), strings.TrimSpace(input.LastName)
	if utf8.RuneCountInString(first) > maxNameLen || utf8.RuneCountInString(last) > maxNameLen {
		return nil, ErrInvalidInput
	}

	taken, err := s.users.EmailTaken(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}
	user := &model.User{
		Email:        email,
		FirstName:    first,
		LastName:     last,
		ProfilePic:   strings.TrimSpace(input.ProfilePic),
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("learner signed up", zap.Uint("user_id", user.ID))
	return s.issue(user)
}

// Login checks the password and records the login time. Unknown emails and
// wrong passwords fail the same way.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*Session, error) {
	email, ok := normalizeEmail(input.Email)
	if !ok || input.Password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		return nil, ErrInvalidCredential
	}

	at := s.now()
	if err := s.users.RecordLogin(ctx, user.ID, at); err != nil {
		s.logger.Warn("record login failed", zap.Uint("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLoginAt = &at
	}
	return s.issue(user)
}

// Profile returns the signed-in learner.
func (s *AuthService) Profile(ctx context.Context, userID uint) (*model.User, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrAccountNotFound
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*Session, error) {
	token, err := jwtutil.GenerateToken(s.secret, s.tokenTTL, user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:       token,
		ExpiresAt:   s.now().Add(s.tokenTTL),
		DisplayName: user.DisplayName(),
		User:        user,
	}, nil
}

func normalizeEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", false
	}
	return email, true
}

func validPassword(p string) bool {
	return utf8.RuneCountInString(p) >= minPasswordLen && len(p) <= maxPasswordBytes
}
