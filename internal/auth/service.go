package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vtsecommerce/salesadmin/internal/credential"
	"vtsecommerce/salesadmin/internal/session"
)

var (
	ErrValidation         = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrActiveElsewhere    = session.ErrActiveElsewhere
)

type ServiceConfig struct {
	Cipher   *credential.Cipher
	Sessions *session.Manager
	Logger   *slog.Logger
}

// Service runs the login and logout flows on top of the user store and the
// session manager.
type Service struct {
	users    UserStore
	cipher   *credential.Cipher
	sessions *session.Manager
	log      *slog.Logger
	nowFunc  func() time.Time
}

func NewService(userStore UserStore, cfg ServiceConfig) (*Service, error) {
	if userStore == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if cfg.Cipher == nil {
		return nil, fmt.Errorf("credential cipher is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		users:    userStore,
		cipher:   cfg.Cipher,
		sessions: cfg.Sessions,
		log:      logger,
		nowFunc:  time.Now,
	}, nil
}

// Login checks the submitted password against the decrypted stored one,
// applies the recency admission rule and opens a new session.
//
// Unknown users, inactive users and wrong passwords all yield
// ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password, deviceInfo string) (LoginResult, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return LoginResult{}, ErrValidation
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}
	if !u.IsActive {
		return LoginResult{}, ErrInvalidCredentials
	}

	stored, err := s.cipher.Decrypt(u.Password)
	if err != nil {
		return LoginResult{}, fmt.Errorf("decrypt stored password for user %d: %w", u.ID, err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(password)) != 1 {
		return LoginResult{}, ErrInvalidCredentials
	}

	if err := s.sessions.CheckLoginAdmission(ctx, u.ID); err != nil {
		return LoginResult{}, err
	}

	sess, err := s.sessions.CreateSession(ctx, u.ID, u.Username, deviceInfo)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: u, Session: sess}, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.ClearSession(ctx, token)
}

func (s *Service) IsSessionValid(ctx context.Context, token string, userID int64) bool {
	return s.sessions.IsSessionValid(ctx, token, userID)
}

// EncryptPassword returns the storable form of a plaintext password.
func (s *Service) EncryptPassword(password string) (string, error) {
	return s.cipher.Encrypt(password)
}

// SeedUsers creates the given accounts only when the user store is empty.
func (s *Service) SeedUsers(ctx context.Context, seeds []SeedUser) (int, error) {
	n, err := s.users.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return 0, nil
	}

	created := 0
	for _, seed := range seeds {
		if strings.TrimSpace(seed.Username) == "" || seed.Password == "" {
			continue
		}
		enc, err := s.cipher.Encrypt(seed.Password)
		if err != nil {
			return created, fmt.Errorf("encrypt seed password: %w", err)
		}
		if _, err := s.users.Create(ctx, User{
			Username:  seed.Username,
			Password:  enc,
			Email:     seed.Email,
			IsActive:  true,
			CreatedAt: s.nowFunc(),
		}); err != nil {
			return created, fmt.Errorf("create seed user %s: %w", seed.Username, err)
		}
		created++
		s.log.Info("seed user created", "username", seed.Username)
	}
	return created, nil
}
