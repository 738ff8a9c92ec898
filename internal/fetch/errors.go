package fetch

import "fmt"

// Kind classifies a fetch failure.
type Kind int

const (
	// Timeout means the per-request deadline expired.
	Timeout Kind = iota
	// HTTPError means the server answered with a non-2xx status.
	HTTPError
	// NetworkError covers DNS, connection and transport failures.
	NetworkError
)

func (k Kind) String() string {
	switch k {
	case Timeout:
		return "timeout"
	case HTTPError:
		return "http_error"
	case NetworkError:
		return "network_error"
	}
	return "unknown"
}

// Error is a typed fetch failure. Status is set for HTTPError only.
type Error struct {
	Kind   Kind
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case HTTPError:
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.Status)
	default:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }
