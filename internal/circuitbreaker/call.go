package circuitbreaker

// Do executes fn under cb and returns its value. This is a convenience
// wrapper for operations that produce a result alongside an error.
func Do[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var result T
	err := cb.Call(func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
