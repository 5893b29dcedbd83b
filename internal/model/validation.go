package model

import "fmt"

// ValidateIDPresent returns ErrValidation when the given identifier is empty.
func ValidateIDPresent(id, field string) error {
	if id == "" {
		return fmt.Errorf("%s must not be empty: %w", field, ErrValidation)
	}
	return nil
}

// ValidateRequestKind checks kind against the closed enumeration.
func ValidateRequestKind(k RequestKind) error {
	switch k {
	case KindExtraTime, KindAppAccess, KindBedtimeExtension, KindRuleSuspension:
		return nil
	}
	return fmt.Errorf("unknown request kind %q: %w", k, ErrValidation)
}

// ValidateDecision checks d against the closed enumeration.
func ValidateDecision(d Decision) error {
	switch d {
	case DecisionApprove, DecisionDeny:
		return nil
	}
	return fmt.Errorf("unknown decision %q: %w", d, ErrValidation)
}
