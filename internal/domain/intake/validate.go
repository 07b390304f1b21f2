package intake

import (
	"fmt"
	"regexp"
	"time"
)

// FieldError reports one field that fails its format rule. It blocks only
// that field; the rest of the form stays editable.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Reason)
}

var (
	integerRe = regexp.MustCompile(`^\d{1,3}$`)
	decimalRe = regexp.MustCompile(`^\d{1,3}(\.\d{1,2})?$`)
)

// ValidateField checks a single vitals field value as it is typed. Empty is
// always allowed (the field simply has not been entered yet).
func ValidateField(name, value string) error {
	if value == "" {
		return nil
	}
	switch name {
	case "bpSystolic", "bpDiastolic", "heartRate", "respiratoryRate", "spo2":
		if !integerRe.MatchString(value) {
			return &FieldError{Field: name, Reason: "must be a whole number"}
		}
	case "temperature", "weight", "height":
		if !decimalRe.MatchString(value) {
			return &FieldError{Field: name, Reason: "must be a number with up to two decimals"}
		}
	}
	return nil
}

// ValidateSnapshot runs every per-field rule on the draft and returns all
// violations. Cross-field completeness (e.g. complaints present) is
// advisory and intentionally not enforced here; submission with empty
// subjective fields is allowed.
func ValidateSnapshot(p *PatientSnapshot, now time.Time) []error {
	var errs []error
	fields := map[string]string{
		"bpSystolic":      p.Vitals.BPSystolic,
		"bpDiastolic":     p.Vitals.BPDiastolic,
		"heartRate":       p.Vitals.HeartRate,
		"respiratoryRate": p.Vitals.RespiratoryRate,
		"spo2":            p.Vitals.SpO2,
		"temperature":     p.Vitals.Temperature,
		"weight":          p.Vitals.Weight,
		"height":          p.Vitals.Height,
	}
	// Deterministic order for stable error reporting.
	for _, name := range []string{"bpSystolic", "bpDiastolic", "heartRate", "respiratoryRate", "spo2", "temperature", "weight", "height"} {
		if err := ValidateField(name, fields[name]); err != nil {
			errs = append(errs, err)
		}
	}
	if p.DOB != "" {
		dob, err := time.Parse("2006-01-02", p.DOB)
		if err != nil {
			errs = append(errs, &FieldError{Field: "dob", Reason: "must be an ISO date (YYYY-MM-DD)"})
		} else if dob.After(now) {
			errs = append(errs, &FieldError{Field: "dob", Reason: "must not be in the future"})
		}
	}
	return errs
}
