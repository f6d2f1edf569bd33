package auth

import (
	"fmt"
	"strings"

	"github.com/jogardn/safety-storefront/internal/apperr"
	"github.com/jogardn/safety-storefront/internal/validate"
	"github.com/jogardn/safety-storefront/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 6

// PrepareUser normalizes the user's fields and replaces the plain password
// with its bcrypt hash. The write path calls it before every insert.
func PrepareUser(user *models.User, password string) error {
	user.Name = strings.TrimSpace(user.Name)
	user.Email = validate.NormalizeEmail(user.Email)
	user.Phone = strings.TrimSpace(user.Phone)
	if user.Role == "" {
		user.Role = models.RoleCustomer
	}

	fields := apperr.Fields{}
	if err := validate.String("name", user.Name, 1, 100); err != nil {
		fields.Add("name", err.Error())
	}
	if err := validate.Email(user.Email); err != nil {
		fields.Add("email", err.Error())
	}
	if user.Phone != "" {
		if err := validate.Phone(user.Phone); err != nil {
			fields.Add("phone", err.Error())
		}
	}
	if len([]rune(password)) < MinPasswordLength {
		fields.Add("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if user.Role != models.RoleAdmin && user.Role != models.RoleCustomer {
		fields.Add("role", "role must be admin or customer")
	}
	if err := fields.Err(); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	return nil
}

func CheckPassword(user *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}
