package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

type ErrorKind string

const (
	KindTimeout  ErrorKind = "timeout"
	KindDNS      ErrorKind = "dns"
	KindRefused  ErrorKind = "refused"
	KindReset    ErrorKind = "reset"
	KindTLS      ErrorKind = "tls"
	KindRequest  ErrorKind = "request"
	KindCanceled ErrorKind = "canceled"
	KindOther    ErrorKind = "other"
)

// Error is a failed exchange. It never carries a response.
type Error struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error for %s: %v", e.Kind, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify maps a request error onto a coarse failure kind.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var tErr *Error
	if errors.As(err, &tErr) {
		return tErr.Kind
	}

	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindDNS
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindRefused
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindReset
	}

	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var recordErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuth) || errors.As(err, &hostErr) || errors.As(err, &recordErr) {
		return KindTLS
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "tls"), strings.Contains(msg, "certificate"):
		return KindTLS
	case strings.Contains(msg, "connection refused"):
		return KindRefused
	case strings.Contains(msg, "connection reset"):
		return KindReset
	case strings.Contains(msg, "no such host"):
		return KindDNS
	case strings.Contains(msg, "i/o timeout"):
		return KindTimeout
	}
	return KindOther
}
