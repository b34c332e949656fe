//go:build !linux

package main

import (
	"context"
	"errors"

	"shdrv/core"
)

func (a *app) openMem(context.Context, *core.IRQController) (*backend, error) {
	return nil, errors.New("mem backend is only available on linux")
}
