package validator

import (
	"reflect"
	"strings"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator combines struct tag validation with question content checks
type Validator struct {
	structValidator   *validator.Validate
	questionValidator *QuestionValidator
}

// New creates a new centralized validator instance
func New() *Validator {
	structValidator := validator.New()

	// Register all custom validators once
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator:   structValidator,
		questionValidator: NewQuestionValidator(),
	}
}

// ValidateStruct validates struct tags and converts failures to ValidationErrors
func (v *Validator) ValidateStruct(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		if errs := ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

// Question returns the question validator
func (v *Validator) Question() *QuestionValidator {
	return v.questionValidator
}

// Engine exposes the underlying validator, e.g. for gin's binding.
func (v *Validator) Engine() *validator.Validate {
	return v.structValidator
}

// registerCustomValidators registers all custom validation functions
func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", validateQuestionType)
	validate.RegisterValidation("user_role", validateUserRole)
	validate.RegisterValidation("exam_visibility", validateExamVisibility)

	// Custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateQuestionType(fl validator.FieldLevel) bool {
	return models.QuestionType(fl.Field().String()).Valid()
}

func validateUserRole(fl validator.FieldLevel) bool {
	switch models.UserRole(strings.ToLower(fl.Field().String())) {
	case models.RoleStudent, models.RoleTeacher, models.RoleAdmin:
		return true
	}
	return false
}

func validateExamVisibility(fl validator.FieldLevel) bool {
	switch models.ExamVisibility(fl.Field().String()) {
	case models.VisibilityPublic, models.VisibilityStaff, models.VisibilityHidden:
		return true
	}
	return false
}
