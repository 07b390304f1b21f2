package record

import (
	"time"

	"github.com/alcortex/alcortex/internal/domain/diagnosis"
	"github.com/alcortex/alcortex/internal/domain/intake"
)

// SavedRecord is one completed diagnostic session: the frozen patient
// snapshot and its analysis, persisted together or not at all. A later
// save with the same ID replaces the record wholesale.
type SavedRecord struct {
	ID       string                     `json:"id"`
	Date     time.Time                  `json:"date"`
	Patient  *intake.PatientSnapshot    `json:"patient"`
	Analysis *diagnosis.DiagnosisResult `json:"analysis"`
	Owner    string                     `json:"owner,omitempty"`
}
