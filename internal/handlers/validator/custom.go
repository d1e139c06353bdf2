package validator

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const maxReceiptLength = 256

// receiptValidator accepts an object id: not blank, no whitespace and no slash since
// it becomes a path segment of the storage server url.
func receiptValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	if val == "" || len(val) > maxReceiptLength {
		return false
	}

	return strings.IndexFunc(val, unicode.IsSpace) == -1 && !strings.Contains(val, "/")
}
