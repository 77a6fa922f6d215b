package errors

import "fmt"

// Wrap adds context to an error at a package boundary. It returns nil if
// err is nil, allowing safe inline usage. The original error chain is
// preserved so errors.Is() keeps working against the sentinels above.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf is Wrap with message formatting.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
