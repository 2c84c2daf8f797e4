package device

import "errors"

var (
	ErrDeviceNotFound     = errors.New("device not found")
	ErrNoPendingCommand   = errors.New("no pending command for device")
	ErrCommandNotFound    = errors.New("device command not found")
	ErrCommandNotOpen     = errors.New("device command is not awaiting a result")
	ErrUnknownCommandType = errors.New("unknown device command type")
)
