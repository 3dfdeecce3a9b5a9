package metrics

import "errors"

var (
	ErrInvalidWindow = errors.New("metrics window is invalid")
)
