package util

import (
	"errors"

	"gorm.io/gorm"
)

// IsDuplicateKey reports a unique-index violation translated by gorm
func IsDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
