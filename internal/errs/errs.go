// SPDX-License-Identifier: MIT

// Package errs holds the error taxonomy shared by the detection pipeline.
// Packages wrap these with context; callers classify with errors.Is.
package errs

import "errors"

var (
	// ErrInvalidConfig is fatal and surfaces before the loop starts.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInvalidInput rejects a single block or window; the loop skips
	// the iteration and carries on.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAcquisition is reported by a sample source that failed to
	// produce a block.
	ErrAcquisition = errors.New("acquisition failure")
)
