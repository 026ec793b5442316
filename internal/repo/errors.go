package repo

import "gorm.io/gorm"

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound so callers can use either with errors.Is.
var ErrNotFound = gorm.ErrRecordNotFound
