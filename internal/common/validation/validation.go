package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "giveaway-bot/internal/common/errors"
)

const (
	// Максимальные длины для различных полей
	MaxPrizeLength       = 200
	MaxDescriptionLength = 1000
	MaxWinnersCount      = 100
)

// Telegram username: буква в начале, затем буквы, цифры, подчеркивания; 4-32 символа
// (четырехсимвольные продаются на Fragment)
var telegramUsernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{3,31}$`)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared validator with the project's custom tags registered.
func Validator() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		_ = instance.RegisterValidation("tg_username", func(fl validator.FieldLevel) bool {
			return IsValidUsername(fl.Field().String())
		})
	})
	return instance
}

// Struct validates s and converts the first failure into a validation AppError.
func Struct(s interface{}) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperrors.NewValidationError(toSnake(fe.Field()), describe(fe))
	}
	return apperrors.Wrap(err, apperrors.ErrCodeValidation, "validation failed")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("cannot exceed %s", fe.Param())
	case "tg_username":
		return "must be a public Telegram username"
	default:
		return fmt.Sprintf("failed on %s", fe.Tag())
	}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeUsername убирает @ и пробелы
func NormalizeUsername(username string) string {
	return strings.TrimPrefix(strings.TrimSpace(username), "@")
}

// IsValidUsername проверяет валидность username (без @)
func IsValidUsername(username string) bool {
	return telegramUsernameRegex.MatchString(NormalizeUsername(username))
}
