// Package errors provides custom error types for the workflow service.

package errors

type (
	ServiceFoundNilArgument struct {
		Msg string
	}
	ServiceIllegalAmount struct {
		Msg string
	}
	ServiceIllegalField struct {
		Msg string
	}
	ServiceIllegalKind struct {
		Msg string
	}
	ServiceIllegalIdentifier struct {
		Msg string
	}
	ServiceEmptyMessage struct {
		Msg string
	}
)

func (e *ServiceFoundNilArgument) Error() string {
	return e.Msg
}

func (e *ServiceIllegalAmount) Error() string {
	return e.Msg
}

func (e *ServiceIllegalField) Error() string {
	return e.Msg
}

func (e *ServiceIllegalKind) Error() string {
	return e.Msg
}

func (e *ServiceIllegalIdentifier) Error() string {
	return e.Msg
}

func (e *ServiceEmptyMessage) Error() string {
	return e.Msg
}
