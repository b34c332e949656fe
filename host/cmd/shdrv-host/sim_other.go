//go:build !unix

package main

import (
	"errors"

	"shdrv/core"
)

func hostProcess(func()) (core.Notifier, core.Pid, func(), error) {
	return nil, 0, nil, errors.New("host signals are only available on unix")
}
