package errors

// WrapOpComponent provides a convenience helper to wrap errors with consistent Op and Component propagation.
// It avoids repetition when creating structured errors throughout the codebase.
// If err is nil, returns nil.
func WrapOpComponent(err error, op Operation, component string) error {
	if err == nil {
		return nil
	}
	return NewWithComponent(op, component, err)
}

// WrapOpComponentCode provides a convenience helper to wrap errors with Op, Component, and Code.
// If err is nil, returns nil.
func WrapOpComponentCode(err error, op Operation, component string, code ErrorCode) error {
	if err == nil {
		return nil
	}
	return &SessionError{
		Op:        op,
		Component: component,
		Code:      code,
		Err:       err,
	}
}
