package syncer

import "fmt"

// ServiceError carries an operation.reason code alongside the underlying
// cause, so callers can report failures without parsing messages.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opEngineNew  = "sync.engine.new"
	opSaveNote   = "sync.save_note"
	opDeleteNote = "sync.delete_note"
	opStatus     = "sync.status"
	opSetUser    = "sync.set_user"
	opMigrate    = "sync.migrate"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}
