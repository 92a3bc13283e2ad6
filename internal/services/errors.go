package services

import (
	"errors"
	"fmt"

	apperrors "github.com/SAP-F-2025/exam-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")
	ErrConflict         = errors.New("resource conflict")

	// Exam specific errors
	ErrExamNotFound          = errors.New("exam not found")
	ErrQuestionAlreadyInExam = errors.New("question already part of exam")
	ErrQuestionNotInExam     = errors.New("question is not part of exam")

	// Question specific errors
	ErrQuestionNotFound     = errors.New("question not found")
	ErrQuestionNotDeletable = errors.New("question cannot be deleted - referenced by exams or responses")

	// Attempt specific errors
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrAttemptNotActive   = errors.New("attempt is not active")
	ErrAttemptNotFinished = errors.New("attempt has not been submitted yet")
	ErrAttemptTimeExpired = errors.New("attempt time has expired")
	ErrResponseNotFound   = errors.New("response not found")

	// Grading specific errors
	ErrGradingPermissionDenied = errors.New("permission denied for grading")

	// Paper specific errors
	ErrPaperNotFound = errors.New("question paper not found")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (bre *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", bre.Rule, bre.Message)
}

type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID uint   `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d - %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

// Is lets errors.Is(err, ErrForbidden) match every permission error.
func (pe *PermissionError) Is(target error) bool {
	return target == ErrForbidden
}

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
	}
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrExamNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrQuestionNotInExam) ||
		errors.Is(err, ErrAttemptNotFound) ||
		errors.Is(err, ErrResponseNotFound) ||
		errors.Is(err, ErrPaperNotFound)
}

// IsUnauthorized checks if error represents an "unauthorized" condition
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsForbidden checks if the caller is authenticated but lacks the role or ownership
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrGradingPermissionDenied)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve apperrors.ValidationErrors
	if errors.As(err, &ve) {
		return true
	}
	var single *apperrors.ValidationError
	return errors.As(err, &single)
}

// IsBusinessRule checks if error represents a business rule violation
func IsBusinessRule(err error) bool {
	var bre *BusinessRuleError
	return errors.As(err, &bre)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrQuestionAlreadyInExam) ||
		errors.Is(err, ErrQuestionNotDeletable) ||
		errors.Is(err, ErrAttemptNotActive) ||
		errors.Is(err, ErrAttemptNotFinished)
}

// IsTimeExpired checks if the attempt deadline has passed
func IsTimeExpired(err error) bool {
	return errors.Is(err, ErrAttemptTimeExpired)
}
