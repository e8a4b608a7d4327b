package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/siting-service/internal/domain"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// travelmode - значение из известных режимов передвижения
	_ = validate.RegisterValidation("travelmode", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseTravelMode(fl.Field().String())
		return err == nil
	})
}

// Validate - валидация структуры
func Validate(s interface{}) error {
	return validate.Struct(s)
}

// Describe превращает ошибки валидатора в одну строку вида "Field: tag=param"
func Describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// GetValidator - получить валидатор для кастомной конфигурации
func GetValidator() *validator.Validate {
	return validate
}
