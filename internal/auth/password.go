package auth

import "golang.org/x/crypto/bcrypt"

// DefaultBcryptCost — стоимость bcrypt по умолчанию.
const DefaultBcryptCost = 10

// PasswordHasher хеширует и проверяет пароли.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher создаёт PasswordHasher. cost вне допустимого диапазона
// bcrypt заменяется на DefaultBcryptCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash возвращает bcrypt-хеш пароля.
func (h *PasswordHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify сравнивает пароль с хешем.
func (h *PasswordHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
