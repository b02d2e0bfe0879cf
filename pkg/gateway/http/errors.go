package http

import (
	"errors"
	"fmt"

	candash "github.com/samsamfire/candash"
	"github.com/samsamfire/candash/pkg/gateway"
	"github.com/samsamfire/candash/pkg/router"
	"github.com/samsamfire/candash/pkg/sdo"
)

var ERROR_GATEWAY_DESCRIPTION_MAP = map[int]string{
	100: "Request not supported",
	101: "Syntax error",
	102: "Request not processed due to internal state",
	103: "Time-out (where applicable)",
	107: "Unsupported parameter",
	600: "Running out of memory",
	601: "CAN interface currently not available",
	900: "Manufacturer-specific error",
}

var (
	ErrGwRequestNotSupported      = &GatewayError{Code: 100}
	ErrGwSyntaxError              = &GatewayError{Code: 101}
	ErrGwRequestNotProcessed      = &GatewayError{Code: 102}
	ErrGwTimeout                  = &GatewayError{Code: 103}
	ErrGwUnsupportedParameter     = &GatewayError{Code: 107}
	ErrGwRunningOutOfMemory       = &GatewayError{Code: 600}
	ErrGwCANInterfaceNotAvailable = &GatewayError{Code: 601}
)

type GatewayError struct {
	Code int // Can be either an sdo abort code or a gateway error code
}

func NewGatewayError(code int) error {
	return &GatewayError{Code: code}
}

func (e *GatewayError) Error() string {
	if e.Code <= 999 {
		return fmt.Sprintf("ERROR:%d", e.Code)
	}
	// Return as a hex value (sdo aborts)
	return fmt.Sprintf("ERROR:0x%x", e.Code)
}

func (e *GatewayError) Description() string {
	if e.Code > 999 {
		return sdo.Abort(e.Code).Description()
	}
	description, ok := ERROR_GATEWAY_DESCRIPTION_MAP[e.Code]
	if !ok {
		return "Unknown error"
	}
	return description
}

// Map an error of the gateway to its error code
func toGatewayError(err error) *GatewayError {
	var gwErr *GatewayError
	var abort sdo.Abort
	switch {
	case errors.As(err, &gwErr):
		return gwErr
	case errors.As(err, &abort):
		return &GatewayError{Code: int(abort)}
	case errors.Is(err, candash.ErrTimeout):
		return ErrGwTimeout
	case errors.Is(err, candash.ErrIllegalArgument), errors.Is(err, router.ErrNotControl):
		return ErrGwSyntaxError
	case errors.Is(err, candash.ErrTxOverflow):
		return ErrGwRunningOutOfMemory
	case errors.Is(err, candash.ErrTxBusy), errors.Is(err, candash.ErrNoBus):
		return ErrGwCANInterfaceNotAvailable
	case errors.Is(err, gateway.ErrImmobilizerDisabled):
		return ErrGwRequestNotSupported
	default:
		return ErrGwRequestNotProcessed
	}
}
