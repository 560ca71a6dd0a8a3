package requestcontext

// optionError lets an Option abort the request with a specific HTTP status
// and client-facing message instead of the generic 500 response.
type optionError struct {
	err     error
	status  int
	message string
}

var _ error = optionError{}

func (e optionError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return e.message
}

func (e optionError) Unwrap() error {
	return e.err
}
