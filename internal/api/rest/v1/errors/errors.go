// Package errors provides custom error types for the API layer.

package errors

type (
	HandlersFoundNilArgument struct {
		Msg string
	}
)

func (e *HandlersFoundNilArgument) Error() string {
	return e.Msg
}
