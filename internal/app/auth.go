package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pscheid92/stockpulse/internal/domain"
	apperrors "github.com/pscheid92/stockpulse/internal/platform/errors"
)

const (
	defaultPasswordCost = bcrypt.DefaultCost

	minUsernameLength = 3
	maxUsernameLength = 150
	minPasswordLength = 8
	maxPasswordBytes  = 72 // bcrypt ignores anything longer
)

type RegisterInput struct {
	Username        string
	Password        string
	PasswordConfirm string
}

// Register validates the input and creates the account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)

	fields := apperrors.FieldErrors{}
	validateUsername(fields, username)
	validatePassword(fields, in.Password)
	if in.Password != in.PasswordConfirm {
		fields.Add("password_confirm", "The two password fields didn't match.")
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.passwordCost)
	if err != nil {
		return nil, apperrors.InternalError("failed to hash password", err)
	}

	user, err := s.users.Create(ctx, username, hash)
	if err != nil {
		return nil, mapError(err, "failed to create user")
	}
	return user, nil
}

// dummyHash keeps unknown-user logins as slow as wrong-password ones.
var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("stockpulse-timing-equaliser"), defaultPasswordCost)
	return hash
})

// Authenticate returns the user for valid credentials. Unknown usernames and
// wrong passwords produce the same form error.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	fields := apperrors.FieldErrors{}
	if strings.TrimSpace(username) == "" {
		fields.Add("username", msgRequired)
	}
	if password == "" {
		fields.Add("password", msgRequired)
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, domain.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return nil, mapError(domain.ErrInvalidCredentials, "")
	}
	if err != nil {
		return nil, mapError(err, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, mapError(domain.ErrInvalidCredentials, "")
	}
	return user, nil
}

func (s *Service) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapError(err, "failed to load user")
	}
	return user, nil
}

// UpdateNotifyChat sets or, with nil, clears the Telegram chat for digests.
func (s *Service) UpdateNotifyChat(ctx context.Context, userID uuid.UUID, chatID *int64) error {
	if chatID != nil && *chatID == 0 {
		return apperrors.FormError(apperrors.FieldErrors{"notify_chat_id": "Enter a valid chat ID."})
	}
	if err := s.users.UpdateNotifyChat(ctx, userID, chatID); err != nil {
		return mapError(err, "failed to update notification settings")
	}
	return nil
}

func validateUsername(fields apperrors.FieldErrors, username string) {
	n := utf8.RuneCountInString(username)
	switch {
	case n == 0:
		fields.Add("username", msgRequired)
		return
	case n < minUsernameLength:
		fields.Add("username", "Ensure this value has at least 3 characters.")
		return
	case n > maxUsernameLength:
		fields.Add("username", "Ensure this value has at most 150 characters.")
		return
	}
	for _, r := range username {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("@.+-_", r) {
			fields.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
			return
		}
	}
}

func validatePassword(fields apperrors.FieldErrors, password string) {
	switch {
	case password == "":
		fields.Add("password", msgRequired)
	case utf8.RuneCountInString(password) < minPasswordLength:
		fields.Add("password", "This password is too short. It must contain at least 8 characters.")
	case len(password) > maxPasswordBytes:
		fields.Add("password", "This password is too long.")
	case strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) < 0:
		fields.Add("password", "This password is entirely numeric.")
	}
}
