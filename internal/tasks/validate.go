package tasks

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	TitleMinLen = 1
	TitleMaxLen = 120
)

const (
	msgTitleRequired = "title required"
	msgTitleTooLong  = "title too long"
	msgNoFields      = "no fields to update"

	msgInvalidBody    = "invalid body"
	msgTitleNotString = "title must be a string"
	msgDoneNotBool    = "done must be a boolean"
)

// titleInput — обёртка для проверки длины тегами validator.
// max считается в рунах, а не в байтах.
type titleInput struct {
	Title string `validate:"required,min=1,max=120"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateTitle обрезает пробелы по краям и проверяет длину 1..120.
func ValidateTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)

	if err := validate.Struct(titleInput{Title: title}); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "max" {
			return "", &ValidationError{Message: msgTitleTooLong}
		}
		return "", &ValidationError{Message: msgTitleRequired}
	}
	return title, nil
}

// normalizePatch проверяет PATCH: сначала title (если есть), затем
// требование хотя бы одного поля. Возвращает копию с обрезанным title.
func normalizePatch(req PatchTaskRequest) (PatchTaskRequest, error) {
	if req.Title != nil {
		title, err := ValidateTitle(*req.Title)
		if err != nil {
			return PatchTaskRequest{}, err
		}
		req.Title = &title
	}
	if req.Title == nil && req.Done == nil {
		return PatchTaskRequest{}, &ValidationError{Message: msgNoFields}
	}
	return req, nil
}
