package reperrors

import (
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouse server codes worth another attempt.
var retryableCodes = map[int32]struct{}{
	159:  {}, // TIMEOUT_EXCEEDED
	160:  {}, // TOO_SLOW
	202:  {}, // TOO_MANY_SIMULTANEOUS_QUERIES
	209:  {}, // SOCKET_TIMEOUT
	210:  {}, // NETWORK_ERROR
	241:  {}, // MEMORY_LIMIT_EXCEEDED
	252:  {}, // TOO_MANY_PARTS
	319:  {}, // UNKNOWN_STATUS_OF_INSERT
	516:  {}, // AUTHENTICATION_FAILED, seen during user reloads
	999:  {}, // KEEPER_EXCEPTION
	1002: {}, // UNKNOWN_EXCEPTION
}

// IsRetryableError reports whether a failed history write may succeed if
// sent again. errors.As walks wrapped and joined errors alike.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var exception *clickhouse.Exception
	if errors.As(err, &exception) {
		_, ok := retryableCodes[exception.Code]
		return ok
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
