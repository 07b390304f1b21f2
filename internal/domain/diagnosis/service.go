package diagnosis

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/alcortex/alcortex/internal/domain/intake"
	"github.com/alcortex/alcortex/internal/provider"
)

// Service runs the diagnostic round trip: build the canonical request, call
// the provider, validate the reply against the response contract.
type Service struct {
	client provider.Client
	logger zerolog.Logger
}

func NewService(client provider.Client, logger zerolog.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// Analyze produces a validated DiagnosisResult for a frozen snapshot. Every
// failure is a *ContractError; the caller branches on its Kind. The context
// carries cancellation through the provider call, so an abandoned request
// stops the upstream call instead of running to completion unobserved.
func (s *Service) Analyze(ctx context.Context, snapshot *intake.PatientSnapshot, language, imageURI string) (*DiagnosisResult, error) {
	req := BuildRequest(snapshot, language, imageURI)

	start := time.Now()
	raw, err := s.client.Generate(ctx, provider.Request{
		Prompt:   req.Prompt(),
		ImageURI: req.ImageURI,
		Schema:   ResponseSchema(),
	})
	if err != nil {
		cerr := Classify(err)
		s.logger.Error().
			Str("kind", string(cerr.Kind)).
			Dur("latency", time.Since(start)).
			Msg("diagnostic synthesis failed")
		return nil, cerr
	}

	result, err := Validate(raw)
	if err != nil {
		var cerr *ContractError
		if errors.As(err, &cerr) {
			s.logger.Error().
				Str("kind", string(cerr.Kind)).
				Str("detail", cerr.Detail).
				Msg("provider reply rejected by contract")
		}
		return nil, err
	}

	s.logger.Info().
		Str("severity", result.Severity).
		Int("differentials", len(result.Differentials)).
		Dur("latency", time.Since(start)).
		Msg("diagnostic synthesis complete")
	return result, nil
}
