package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Repository errors
	ErrUnauthorized       = fmt.Errorf("not authorized")
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrObjectNotFound     = fmt.Errorf("object not found")
	ErrDatastreamNotFound = fmt.Errorf("datastream not found")
	ErrHistoryUnavailable = fmt.Errorf("datastream history unavailable")
	ErrSaveFailed         = fmt.Errorf("datastream save failed")

	// Input and output errors
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrOutputLocked    = fmt.Errorf("output file in use by another run")

	// Run store errors
	ErrRunNotFound = fmt.Errorf("run not found")
)
