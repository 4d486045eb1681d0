package enum

// ErrorKind classifies why a single provider call failed.
type ErrorKind string

const (
	ErrorKindTimeout       ErrorKind = "TIMEOUT"
	ErrorKindTransport     ErrorKind = "TRANSPORT"
	ErrorKindProtocolError ErrorKind = "PROTOCOL_ERROR"
	ErrorKindUnexpected    ErrorKind = "UNEXPECTED"
)
