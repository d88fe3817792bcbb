package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *InflightError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigRequired(field string) *InflightError {
	return New(CategoryConfig, SeverityFatal, "required configuration missing").
		WithContext("field", field)
}

func ValidationFailed(field, reason string) *InflightError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Snapshot storage errors

func StorageError(operation string, cause error) *InflightError {
	return Wrap(cause, CategoryStorage, SeverityError, "snapshot store operation failed").
		WithContext("operation", operation)
}

func StorageOpenError(path string, cause error) *InflightError {
	return Wrap(cause, CategoryStorage, SeverityFatal, "failed to open snapshot store").
		WithContext("path", path)
}

// NATS errors

func NATSConnectError(url string, cause error) *InflightError {
	return WrapRetryable(cause, CategoryNATS, SeverityError, "failed to connect to NATS").
		WithContext("url", url)
}

func NATSPublishError(subject string, cause error) *InflightError {
	return WrapRetryable(cause, CategoryNATS, SeverityWarning, "failed to publish snapshot batch").
		WithContext("subject", subject)
}

// Registry state errors

func CounterMissing(name, registry string, cause error) *InflightError {
	return Wrap(cause, CategoryState, SeverityError, "counter lookup failed").
		WithContext("counter", name).
		WithContext("registry", registry)
}
