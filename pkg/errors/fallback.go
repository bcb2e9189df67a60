package errors

// GracefulDegradation provides fallback options when primary operations fail.
// Metadata reads use it to fall back from INFORMATION_SCHEMA queries to SHOW
// commands when the session lacks privileges on the schema views.
type GracefulDegradation struct {
	handler *ErrorHandler
}

// NewGracefulDegradation creates a new graceful degradation handler
func NewGracefulDegradation(handler *ErrorHandler) *GracefulDegradation {
	return &GracefulDegradation{handler: handler}
}

// WithFallback executes a primary function with a fallback option
func (gd *GracefulDegradation) WithFallback(
	primary func() error,
	fallback func() error,
	degradationMessage string,
) error {
	// Try primary function
	if err := primary(); err != nil {
		// Log the degradation
		gd.handler.Handle(New(ErrCodeInternal, degradationMessage).
			WithSeverity(SeverityWarning).
			WithContext("primary_error", err.Error()))

		// Try fallback
		if fallbackErr := fallback(); fallbackErr != nil {
			// Both failed
			return Wrap(err, ErrCodeInternal, "Primary and fallback operations failed").
				WithContext("fallback_error", fallbackErr.Error())
		}

		// Fallback succeeded
		return nil
	}

	// Primary succeeded
	return nil
}

// DegradationOptions provides multiple fallback levels
type DegradationOptions struct {
	Levels []DegradationLevel
}

// DegradationLevel represents a single degradation level
type DegradationLevel struct {
	Name        string
	Description string
	Execute     func() error
}

// ExecuteWithDegradation tries multiple degradation levels
func (gd *GracefulDegradation) ExecuteWithDegradation(options DegradationOptions) error {
	var lastError error

	for i, level := range options.Levels {
		if i > 0 {
			// Not the primary level, log degradation
			gd.handler.Handle(New(ErrCodeInternal,
				"Degrading to: "+level.Description).
				WithSeverity(SeverityWarning))
		}

		if err := level.Execute(); err != nil {
			lastError = err
			continue
		}

		return nil
	}

	// All levels failed
	return Wrap(lastError, ErrCodeInternal, "All operation levels failed")
}
