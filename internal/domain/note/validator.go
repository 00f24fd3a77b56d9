package note

import "strings"

// Issue is one documentation-completeness finding.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult classifies a note snapshot for signing. Blockers prevent
// the sign; warnings are surfaced for acknowledgment but never block.
type ValidationResult struct {
	CanProceed bool    `json:"can_proceed"`
	Blockers   []Issue `json:"blockers"`
	Warnings   []Issue `json:"warnings"`
}

// Validate classifies a note against the ward's documentation-completeness
// rules. Pure function; the sign path re-runs it immediately before the
// commit so a stale result from the editing session is never trusted.
func Validate(n *ClinicalNote) ValidationResult {
	var blockers, warnings []Issue

	if strings.TrimSpace(n.PatientID) == "" || n.PatientID == UnassignedPatient {
		blockers = append(blockers, Issue{
			Code:    "patient-unassigned",
			Message: "patient not assigned",
		})
	}
	if strings.TrimSpace(n.Diagnosis) == "" {
		blockers = append(blockers, Issue{
			Code:    "diagnosis-missing",
			Message: "no working diagnosis",
		})
	}
	if strings.TrimSpace(n.VitalSigns) == "" {
		blockers = append(blockers, Issue{
			Code:    "vitals-missing",
			Message: "no baseline vital signs recorded",
		})
	}

	if strings.TrimSpace(n.CodeStatus) == "" {
		warnings = append(warnings, Issue{
			Code:    "code-status-unaddressed",
			Message: "code status not addressed",
		})
	}
	if strings.TrimSpace(n.VTEProphylaxis) == "" {
		warnings = append(warnings, Issue{
			Code:    "vte-unconsidered",
			Message: "VTE prophylaxis not considered",
		})
	}
	if strings.TrimSpace(n.Plan) == "" {
		warnings = append(warnings, Issue{
			Code:    "plan-empty",
			Message: "management plan is empty",
		})
	}

	return ValidationResult{
		CanProceed: len(blockers) == 0,
		Blockers:   blockers,
		Warnings:   warnings,
	}
}
