package booking

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/class-booking/internal/model"
)

// CreateSessionCmd is the operator input for a new session.
type CreateSessionCmd struct {
	ClassID   uint64       `json:"classId" validate:"required"`
	Date      string       `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string       `json:"startTime" validate:"required,clocktime"`
	EndTime   string       `json:"endTime" validate:"required,clocktime"`
	Capacity  int          `json:"capacity" validate:"min=1"`
	Status    model.Status `json:"status" validate:"omitempty,oneof=active inactive"`
}

// UpdateSessionCmd is a partial edit; nil fields keep their stored value.
type UpdateSessionCmd struct {
	Date      *string       `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartTime *string       `json:"startTime" validate:"omitempty,clocktime"`
	EndTime   *string       `json:"endTime" validate:"omitempty,clocktime"`
	Capacity  *int          `json:"capacity"`
	Status    *model.Status `json:"status" validate:"omitempty,oneof=active inactive"`
}

// AddLineCmd asks to hold persons seats of a session in a cart.
type AddLineCmd struct {
	SessionID uint64 `json:"sessionId" form:"session_id" validate:"required"`
	Persons   int    `json:"persons" form:"persons"`
}

// CompleteOrderCmd is delivered by the order platform once payment is done.
type CompleteOrderCmd struct {
	OrderID string            `json:"orderId" validate:"required,max=64"`
	Lines   []model.OrderLine `json:"lines" validate:"required,min=1"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("clocktime", func(fl validator.FieldLevel) bool {
			_, err := model.ParseTimeOfDay(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// validateStruct runs the tag rules and folds failures into one
// ErrValidation listing every offending field.
func validateStruct(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return ErrValidation.Wrap(err)
	}
	msgs := make([]string, 0, len(ves))
	fields := make([]string, 0, len(ves))
	for _, fe := range ves {
		msgs = append(msgs, fieldMessage(fe))
		fields = append(fields, lowerFirst(fe.Field()))
	}
	return ErrValidation.Msg("%s", strings.Join(msgs, "; ")).With("fields", fields)
}

func fieldMessage(fe validator.FieldError) string {
	name := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "datetime":
		return name + " must be a valid date (YYYY-MM-DD)"
	case "clocktime":
		return name + " must be a time (HH:MM or HH:MM:SS)"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, fe.Param())
	}
	return name + " is invalid"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
