package fbwire

import (
	"errors"
	"fmt"
)

// Sentinel errors for misuse of closed or mismatched handles. Server-side
// failures arrive as *ServerError instead.
var (
	ErrConnectionClosed  = errors.New("fbwire: connection is closed")
	ErrTransactionClosed = errors.New("fbwire: transaction is closed")
	ErrStatementClosed   = errors.New("fbwire: statement is closed")
	ErrRowsClosed        = errors.New("fbwire: rows are closed")
	ErrAuthRejected      = errors.New("fbwire: authentication rejected")
	ErrProtocol          = errors.New("fbwire: protocol violation")
	ErrConversion        = errors.New("fbwire: unsupported value conversion")
	ErrOutOfRange        = errors.New("fbwire: value or column index out of range")
	ErrNullValue         = errors.New("fbwire: column is NULL")
	ErrParamCount        = errors.New("fbwire: parameter count mismatch")
)

// ServerError is a failed status vector returned by the server. Message is
// assembled from the GDS error templates with the vector's string and
// numeric arguments substituted in.
type ServerError struct {
	// Codes holds every isc_arg_gds code in the vector, first one first.
	Codes []uint32
	// SQLCode is set when the vector carries gds_sqlerr.
	SQLCode int32
	Message string
}

func (e *ServerError) Error() string {
	if e.SQLCode != 0 {
		return fmt.Sprintf("fbwire: server error (sqlcode %d): %s", e.SQLCode, e.Message)
	}
	return "fbwire: server error: " + e.Message
}

// HasCode reports whether the status vector contained the given GDS code.
func (e *ServerError) HasCode(code uint32) bool {
	for _, c := range e.Codes {
		if c == code {
			return true
		}
	}
	return false
}

func protocolErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}

func conversionErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConversion, fmt.Sprintf(format, args...))
}
