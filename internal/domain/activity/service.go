package activity

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Service applies the fire-and-forget policy over the remote log with a
// local fallback.
type Service struct {
	remote  Repository
	local   *LocalLog
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(remote Repository, local *LocalLog, timeout time.Duration, logger zerolog.Logger) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Service{
		remote:  remote,
		local:   local,
		timeout: timeout,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Log records an action. It never returns an error: persistence failures
// are logged and absorbed.
func (s *Service) Log(ctx context.Context, email, action string) {
	e := &Entry{Email: email, Action: action, At: s.now()}

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	remoteErr := s.remote.Append(rctx, e)
	cancel()
	if remoteErr == nil {
		return
	}

	s.logger.Warn().Err(remoteErr).Str("action", action).
		Msg("remote activity append failed, writing to local log")
	if localErr := s.local.Append(ctx, e); localErr != nil {
		s.logger.Error().Err(localErr).Str("action", action).
			Msg("activity entry dropped")
	}
}
