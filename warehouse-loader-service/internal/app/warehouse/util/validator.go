package util

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateRow проверяет теги validate строки снимка и возвращает читаемую ошибку
func ValidateRow(row interface{}) error {
	err := validate.Struct(row)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			messages = append(messages, fmt.Sprintf("%s failed on %s", e.Field(), e.Tag()))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}
