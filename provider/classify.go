package provider

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/valyala/fasthttp"

	"bestoffer.kz/travel/models/enum"
)

// Classify maps a transport-level error to its ErrorKind. Timeouts are
// checked first because most timeout errors are also net.Errors.
func Classify(err error) enum.ErrorKind {
	if err == nil {
		return ""
	}

	if errors.Is(err, fasthttp.ErrTimeout) ||
		errors.Is(err, fasthttp.ErrDialTimeout) ||
		errors.Is(err, context.DeadlineExceeded) {
		return enum.ErrorKindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return enum.ErrorKindTimeout
	}

	if errors.Is(err, fasthttp.ErrConnectionClosed) ||
		errors.Is(err, fasthttp.ErrNoFreeConns) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return enum.ErrorKindTransport
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) || errors.As(err, &netErr) {
		return enum.ErrorKindTransport
	}

	return enum.ErrorKindUnexpected
}
