package core

import "errors"

var (
	ErrBusy           = errors.New("device busy")
	ErrNoSuchDevice   = errors.New("no such device")
	ErrOutOfRange     = errors.New("command number out of range")
	ErrInvalidRequest = errors.New("inappropriate ioctl for device")
	ErrInterrupted    = errors.New("interrupted wait")
	ErrCopyFault      = errors.New("bad address")
	ErrSessionClosed  = errors.New("session closed")
)

// Linux errno numbers used on the wire
const (
	EINTR  = 4
	EIO    = 5
	EBADF  = 9
	EFAULT = 14
	EBUSY  = 16
	ENODEV = 19
	EMFILE = 24
	ENOTTY = 25
	ENOSYS = 38
)

var errnoTable = []struct {
	err   error
	errno int32
}{
	{ErrBusy, EBUSY},
	{ErrNoSuchDevice, ENODEV},
	{ErrInvalidRequest, ENOTTY},
	{ErrOutOfRange, ENOTTY},
	{ErrInterrupted, EINTR},
	{ErrCopyFault, EFAULT},
	{ErrSessionClosed, EBADF},
	{ErrBadHandle, EBADF},
	{ErrTooManyFiles, EMFILE},
	{ErrUnknownCommand, ENOSYS},
}

// Errno converts an operation error to a negative status code.
// nil maps to 0, unknown errors to -EIO.
func Errno(err error) int32 {
	if err == nil {
		return 0
	}
	for _, e := range errnoTable {
		if errors.Is(err, e.err) {
			return -e.errno
		}
	}
	return -EIO
}

// ErrnoError is the inverse of Errno. Sentinels sharing a status are
// indistinguishable on the wire, so the result matches each of them with
// errors.Is; its message is the first one's.
func ErrnoError(status int32) error {
	if status >= 0 {
		return nil
	}
	var e errnoError
	for _, entry := range errnoTable {
		if -status == entry.errno {
			e = append(e, entry.err)
		}
	}
	switch len(e) {
	case 0:
		return errors.New("errno " + itoa(int(-status)))
	case 1:
		return e[0]
	}
	return e
}

// errnoError is a status shared by several sentinels
type errnoError []error

func (e errnoError) Error() string {
	return e[0].Error()
}

func (e errnoError) Is(target error) bool {
	for _, err := range e {
		if err == target {
			return true
		}
	}
	return false
}
