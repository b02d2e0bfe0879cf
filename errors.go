package candash

import "errors"

var (
	ErrIllegalArgument = errors.New("error in function arguments")
	ErrTimeout         = errors.New("function timeout")
	ErrRxOverflow      = errors.New("inbound queue full, frame dropped")
	ErrTxOverflow      = errors.New("outbound queue full, frame rejected")
	ErrTxBusy          = errors.New("sending rejected because driver is busy")
	ErrNoBus           = errors.New("no CAN bus configured")
)
