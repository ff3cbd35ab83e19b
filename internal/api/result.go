package api

// Status discriminates a Result.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Result is the outcome of every client operation. Exactly one of Data
// (possibly nil, meaning a null body) or Detail is meaningful, depending on Status.
type Result[T any] struct {
	Status Status `json:"status"`
	Data   *T     `json:"data"`
	Detail string `json:"detail,omitempty"`
	// StatusCode is the HTTP status of the final response, 0 when no
	// response was received.
	StatusCode int `json:"-"`
}

// OK reports whether the result is a success.
func (r Result[T]) OK() bool {
	return r.Status == StatusOK
}

// Value returns the data and whether the result is a success with a non-null body.
func (r Result[T]) Value() (T, bool) {
	if r.Status != StatusOK || r.Data == nil {
		var zero T
		return zero, false
	}
	return *r.Data, true
}

func okResult[T any](data *T, statusCode int) Result[T] {
	return Result[T]{Status: StatusOK, Data: data, StatusCode: statusCode}
}

func errorResult[T any](detail string, statusCode int) Result[T] {
	return Result[T]{Status: StatusError, Detail: detail, StatusCode: statusCode}
}

// List is the paginated list envelope returned by collection endpoints.
type List[T any] struct {
	Total int `json:"total"`
	Items []T `json:"items"`
}
