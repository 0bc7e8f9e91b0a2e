package usecase

import "errors"

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrNotFound               = errors.New("resource not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrDuplicateRegistration  = errors.New("duplicate registration")
	ErrSequenceNotInitialized = errors.New("sequence not initialized")
	ErrSequenceAllocation     = errors.New("sequence allocation failed")
	ErrFileUpload             = errors.New("file upload failed")
	ErrFileMigration          = errors.New("file migration failed")
	ErrDatabase               = errors.New("database operation failed")
	ErrDependencyUnavailable  = errors.New("dependency unavailable")
)
