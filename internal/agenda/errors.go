package agenda

import "errors"

var (
	ErrInvalidInterval = errors.New("invalid interval")
	ErrInvalidWhen     = errors.New("invalid schedule time")
	ErrMissingName     = errors.New("job name is required")
	ErrJobNotFound     = errors.New("job not found")
	ErrNotDefined      = errors.New("job is not defined")
)
