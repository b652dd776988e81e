package app

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"teach-quiz-service/internal/domain"
)

// CreateQuizInput is the teacher payload for a new quiz.
type CreateQuizInput struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	CourseID    string  `json:"course_id" validate:"required"`
}

// UpdateQuizInput patches quiz metadata. Nil fields are left untouched.
type UpdateQuizInput struct {
	Title       *string `json:"title" validate:"omitnil,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

// QuestionInput describes a new question.
type QuestionInput struct {
	Text          string   `json:"text" validate:"required,max=1000"`
	Options       []string `json:"options" validate:"len=4,dive,required,max=500"`
	CorrectOption int      `json:"correct_option" validate:"min=0,max=3"`
}

// QuestionPatch updates a question. Nil fields are left untouched.
type QuestionPatch struct {
	Text          *string  `json:"text" validate:"omitnil,min=1,max=1000"`
	Options       []string `json:"options" validate:"omitempty,len=4,dive,required,max=500"`
	CorrectOption *int     `json:"correct_option" validate:"omitnil,min=0,max=3"`
}

// AnswerInput is a student's choice for one question.
type AnswerInput struct {
	QuestionID     string `json:"question_id" validate:"required"`
	SelectedOption int    `json:"selected_option" validate:"min=0,max=3"`
}

type emailInput struct {
	Email string `json:"email" validate:"required,email"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// check runs struct validation and converts failures to *domain.ValidationError.
func (s *QuizService) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.NewValidationError(err.Error())
	}
	fields := make([]domain.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, domain.FieldError{
			Field: fe.Field(),
			Error: describeTag(fe),
		})
	}
	return domain.NewValidationError("invalid input", fields...)
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "len":
		return fmt.Sprintf("must have exactly %s items", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return "failed on " + fe.Tag()
	}
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toOptions(in []string) [domain.OptionCount]string {
	var out [domain.OptionCount]string
	for i := 0; i < domain.OptionCount && i < len(in); i++ {
		out[i] = strings.TrimSpace(in[i])
	}
	return out
}
