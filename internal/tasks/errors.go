package tasks

import "errors"

var (
	// ErrUnauthorized — у запроса нет владельца.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound — задача не существует или принадлежит другому пользователю.
	// Эти случаи намеренно не различаются.
	ErrNotFound = errors.New("not found")

	// ErrUnscopedFilter — попытка обратиться к хранилищу без OwnerID.
	ErrUnscopedFilter = errors.New("store filter must be scoped by owner")
)

// ValidationError — ошибка входных данных с одним сообщением для клиента.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidation сообщает, является ли err ошибкой валидации.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
