package handle

import "errors"

// ErrAlreadyExists reports that a candidate identifier is already registered.
var ErrAlreadyExists = errors.New("handle already exists")

// RegistryError carries two audiences worth of detail: a generic message safe
// for the step log end users read, and the full detail (status codes, bodies)
// for the operational log.
type RegistryError struct {
	UserMessage  string
	AdminMessage string
}

func (e *RegistryError) Error() string {
	if e.AdminMessage != "" {
		return e.AdminMessage
	}
	return e.UserMessage
}

const genericUserMessage = "The identifier registry could not be reached. Please try again later or contact an administrator."

func registryError(admin string) *RegistryError {
	return &RegistryError{
		UserMessage:  genericUserMessage,
		AdminMessage: admin,
	}
}
