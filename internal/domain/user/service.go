package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrInvalidEmail rejects a registration without a parseable email.
var ErrInvalidEmail = errors.New("a valid email is required")

// Service fronts the registry with remote-primary/local-fallback writes,
// mirroring the record vault policy.
type Service struct {
	remote  Repository
	local   *LocalRegistry
	timeout time.Duration
	logger  zerolog.Logger
}

func NewService(remote Repository, local *LocalRegistry, timeout time.Duration, logger zerolog.Logger) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Service{remote: remote, local: local, timeout: timeout, logger: logger}
}

// Register validates and upserts a clinician by email.
func (s *Service) Register(ctx context.Context, u *User) error {
	u.Email = strings.TrimSpace(strings.ToLower(u.Email))
	if u.Email == "" {
		return ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, u.Email)
	}
	if u.RegisteredAt.IsZero() {
		u.RegisteredAt = time.Now().UTC()
	}

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	remoteErr := s.remote.Register(rctx, u)
	cancel()
	if remoteErr == nil {
		return nil
	}

	s.logger.Warn().Err(remoteErr).Str("email", u.Email).
		Msg("remote registration failed, writing to local registry")
	if localErr := s.local.Register(ctx, u); localErr != nil {
		return fmt.Errorf("user %s not registered: remote: %v; local: %w", u.Email, remoteErr, localErr)
	}
	return nil
}
