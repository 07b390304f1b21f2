package diagnosis

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alcortex/alcortex/internal/provider"
)

// Kind classifies a diagnostic-path failure.
type Kind string

const (
	// KindEmptyResponse means the provider returned no content at all.
	KindEmptyResponse Kind = "empty_response"
	// KindMalformedJSON means the content is not parseable JSON.
	KindMalformedJSON Kind = "malformed_json"
	// KindSchemaViolation means the content parses but misses a required
	// field or fails a type/range check.
	KindSchemaViolation Kind = "schema_violation"
	// KindProviderAuth means the provider rejected the configured
	// credentials. Fatal, but its remedy (reconfigure) differs from a data
	// problem, so it is kept distinct.
	KindProviderAuth Kind = "provider_auth"
	// KindProviderTransient covers rate limits, timeouts and 5xx; the
	// caller may offer a manual retry.
	KindProviderTransient Kind = "provider_transient"
)

// ContractError is a classified diagnostic failure. Detail carries the raw
// diagnostic text verbatim so operators can tell configuration problems
// from data problems.
type ContractError struct {
	Kind   Kind
	Detail string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Retryable reports whether the caller may usefully retry the attempt.
// Only transient provider failures qualify; everything else is fatal for
// the attempt.
func (e *ContractError) Retryable() bool {
	return e.Kind == KindProviderTransient
}

// HTTPStatus maps the failure kind to the status the intake UI keys its
// banner off. Auth problems are a gateway configuration matter, not a
// data matter.
func (e *ContractError) HTTPStatus() int {
	switch e.Kind {
	case KindProviderAuth:
		return http.StatusBadGateway
	case KindProviderTransient:
		return http.StatusServiceUnavailable
	default: // empty, malformed, schema
		return http.StatusBadRequest
	}
}

// Classify maps a provider call failure to a ContractError. Classification
// uses the adapter's structured code, never message-text sniffing. A
// payload rejection (provider.CodeInvalidRequest) is treated as a schema
// problem on our side: fatal and non-retryable.
func Classify(err error) *ContractError {
	var perr *provider.Error
	if errors.As(err, &perr) {
		switch {
		case perr.Code == provider.CodeAuth:
			return &ContractError{Kind: KindProviderAuth, Detail: perr.Message}
		case perr.Code == provider.CodeInvalidRequest:
			return &ContractError{Kind: KindSchemaViolation, Detail: perr.Message}
		default:
			return &ContractError{Kind: KindProviderTransient, Detail: perr.Message}
		}
	}
	return &ContractError{Kind: KindProviderTransient, Detail: err.Error()}
}

// wireResult mirrors DiagnosisResult with pointers so missing fields are
// distinguishable from zero values.
type wireResult struct {
	MainDiagnosis   *string `json:"mainDiagnosis"`
	Differentials   *[]struct {
		Diagnosis  *string  `json:"diagnosis"`
		ICD10      *string  `json:"icd10"`
		Confidence *float64 `json:"confidence"`
	} `json:"differentials"`
	Severity        *string  `json:"severity"`
	ConfidenceScore *float64 `json:"confidenceScore"`
	Interpretation  *string  `json:"interpretation"`
	SafetyWarning   *string  `json:"safetyWarning"`
	FollowUp        *string  `json:"followUp"`
	MedicationRecs  *string  `json:"medicationRecs"`
}

// Validate checks a raw provider reply against the response contract and
// returns the typed result or a *ContractError. Violations are never
// silently coerced.
func Validate(raw []byte) (*DiagnosisResult, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, &ContractError{Kind: KindEmptyResponse, Detail: "provider returned no content"}
	}

	var wire wireResult
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &ContractError{
			Kind:   KindMalformedJSON,
			Detail: fmt.Sprintf("%v; raw: %s", err, truncate(raw, 512)),
		}
	}

	missing := missingFields(&wire)
	if len(missing) > 0 {
		return nil, &ContractError{
			Kind:   KindSchemaViolation,
			Detail: "missing required fields: " + strings.Join(missing, ", "),
		}
	}

	if !ValidSeverity(*wire.Severity) {
		return nil, &ContractError{
			Kind:   KindSchemaViolation,
			Detail: fmt.Sprintf("severity %q is not one of Mild, Moderate, Severe, Critical", *wire.Severity),
		}
	}
	if *wire.ConfidenceScore < 0 || *wire.ConfidenceScore > 1 {
		return nil, &ContractError{
			Kind:   KindSchemaViolation,
			Detail: fmt.Sprintf("confidenceScore %v outside [0,1]", *wire.ConfidenceScore),
		}
	}

	result := &DiagnosisResult{
		MainDiagnosis:   *wire.MainDiagnosis,
		Severity:        *wire.Severity,
		ConfidenceScore: *wire.ConfidenceScore,
		Interpretation:  *wire.Interpretation,
		SafetyWarning:   *wire.SafetyWarning,
		FollowUp:        *wire.FollowUp,
		MedicationRecs:  *wire.MedicationRecs,
		Differentials:   make([]Differential, 0, len(*wire.Differentials)),
	}

	for i, d := range *wire.Differentials {
		if d.Diagnosis == nil || d.ICD10 == nil || d.Confidence == nil {
			return nil, &ContractError{
				Kind:   KindSchemaViolation,
				Detail: fmt.Sprintf("differentials[%d] missing diagnosis, icd10 or confidence", i),
			}
		}
		if *d.Confidence < 0 || *d.Confidence > 1 {
			return nil, &ContractError{
				Kind:   KindSchemaViolation,
				Detail: fmt.Sprintf("differentials[%d].confidence %v outside [0,1]", i, *d.Confidence),
			}
		}
		// Provider-assigned order is preserved.
		result.Differentials = append(result.Differentials, Differential{
			Diagnosis:  *d.Diagnosis,
			ICD10:      *d.ICD10,
			Confidence: *d.Confidence,
		})
	}

	return result, nil
}

func missingFields(w *wireResult) []string {
	var missing []string
	if w.MainDiagnosis == nil {
		missing = append(missing, "mainDiagnosis")
	}
	if w.Differentials == nil {
		missing = append(missing, "differentials")
	}
	if w.Severity == nil {
		missing = append(missing, "severity")
	}
	if w.ConfidenceScore == nil {
		missing = append(missing, "confidenceScore")
	}
	if w.Interpretation == nil {
		missing = append(missing, "interpretation")
	}
	if w.SafetyWarning == nil {
		missing = append(missing, "safetyWarning")
	}
	if w.FollowUp == nil {
		missing = append(missing, "followUp")
	}
	if w.MedicationRecs == nil {
		missing = append(missing, "medicationRecs")
	}
	return missing
}

func truncate(raw []byte, n int) string {
	s := string(raw)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
