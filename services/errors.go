package services

import (
	"errors"

	"github.com/psicanalise-online/platform/repository"
	"github.com/psicanalise-online/platform/utils"
)

// storeErr converts a repository failure into an AppError.
func storeErr(err error, notFound string) error {
	if err == nil {
		return nil
	}
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, repository.ErrNotFound) {
		return utils.NewNotFound(notFound)
	}
	return utils.NewInternal(err)
}
