package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials — неверный email или пароль.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidEmail — email не похож на адрес.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrWeakPassword — пароль короче 6 символов.
	ErrWeakPassword = errors.New("password must be at least 6 chars")
	// ErrPasswordTooLong — bcrypt не принимает больше 72 байт.
	ErrPasswordTooLong = errors.New("password must be at most 72 characters")
)

// SessionCookie — имя cookie с токеном сессии.
const SessionCookie = "session"

type registerInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"min=6,max=72"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Service — регистрация, вход и определение владельца запроса.
type Service struct {
	users  *UserRepository
	hasher *PasswordHasher
	tokens *TokenManager
}

// NewService создаёт Service.
func NewService(users *UserRepository, hasher *PasswordHasher, tokens *TokenManager) *Service {
	return &Service{users: users, hasher: hasher, tokens: tokens}
}

// Register создаёт учётную запись. Email нормализуется: trim + lower case.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := validate.Struct(registerInput{Email: email, Password: req.Password}); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			switch {
			case verrs[0].Field() == "Email":
				return nil, ErrInvalidEmail
			case verrs[0].Tag() == "max":
				return nil, ErrPasswordTooLong
			}
		}
		return nil, ErrWeakPassword
	}
	// bcrypt считает байты, а validator считает руны.
	if len(req.Password) > 72 {
		return nil, ErrPasswordTooLong
	}

	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var name *string
	if n := strings.TrimSpace(req.Name); n != "" {
		name = &n
	}

	now := time.Now().UTC()
	user := &User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login проверяет пароль и выпускает токен сессии.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{Token: token, ExpiresIn: s.tokens.TTL(), TokenType: "Bearer"}, nil
}

// CurrentUser достаёт владельца из Authorization: Bearer или cookie session.
// Токен удалённого пользователя не принимается. Реализует middleware.Authenticator.
func (s *Service) CurrentUser(r *http.Request) (string, bool) {
	token := bearerToken(r)
	if token == "" {
		if c, err := r.Cookie(SessionCookie); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		return "", false
	}

	claims, err := s.tokens.Validate(token)
	if err != nil {
		return "", false
	}
	user, err := s.users.FindByID(r.Context(), claims.Subject)
	if err != nil {
		return "", false
	}
	return user.ID, true
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}
