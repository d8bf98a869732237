package installation

import "errors"

var (
	ErrNotFound      = errors.New("installation not found")
	ErrStaleWrite    = errors.New("installation was modified concurrently")
	ErrInvalidStatus = errors.New("invalid installation status")
	ErrDuplicateCode = errors.New("installation code already exists in sector")
)
