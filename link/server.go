// Package link exposes a core.Driver over the framed serial protocol.
//
// Every connection runs as a process in a proc.Table: requests are executed
// with its pid, notifications posted to that pid go back to the host as
// unsolicited signal frames, and disconnecting closes the sessions it left
// open.
package link

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"shdrv/core"
	"shdrv/proc"
	"shdrv/protocol"
)

// Server dispatches link requests to one driver
type Server struct {
	drv      *core.Driver
	registry *core.CommandRegistry
	procs    *proc.Table
	log      *slog.Logger
}

// NewServer binds the link dictionary to drv. Connection processes are
// spawned in procs, which must also be the driver's notifier for signals
// to reach the host.
func NewServer(drv *core.Driver, procs *proc.Table, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		drv:      drv,
		registry: core.NewLinkRegistry(drv),
		procs:    procs,
		log:      log.With("component", "link"),
	}
}

// Dictionary returns the "id name format" command list
func (s *Server) Dictionary() string {
	return s.registry.GetDictionary()
}

// Serve runs one connection until the port fails or ctx is cancelled,
// then releases everything the connection held. It returns the link error,
// or nil after a clean close.
func (s *Server) Serve(ctx context.Context, port io.ReadWriteCloser) error {
	ctx, cancel := context.WithCancel(ctx)

	p := s.procs.Spawn("link")
	files := core.NewFileTable(ctx, p.Pid())
	log := s.log.With("pid", p.Pid())

	conn := protocol.NewConn(port, func(c *protocol.Conn, msg protocol.Message) {
		s.handle(c, files, msg)
	})
	p.HandleDefault(func(sig core.SigNo) {
		err := conn.Send(protocol.SeqAsync, protocol.MsgSignal, func(output protocol.OutputBuffer) {
			protocol.EncodeVLQInt(output, int32(sig))
		})
		if err != nil {
			log.Debug("signal dropped", "signo", sig, "err", err)
		}
	})
	log.Info("link up")

	select {
	case <-ctx.Done():
	case <-conn.Done():
	}
	// Abort any blocked request before waiting for the reader
	cancel()
	_ = conn.Close()

	files.CloseAll()
	s.procs.Exit(p.Pid())

	err := conn.Err()
	if errors.Is(err, protocol.ErrConnClosed) || errors.Is(err, io.ErrClosedPipe) {
		err = nil
	}
	log.Info("link down", "err", err)
	return err
}

// handle executes one request and answers with a status frame carrying
// the request's sequence number
func (s *Server) handle(c *protocol.Conn, files *core.FileTable, msg protocol.Message) {
	if msg.Sequence == protocol.SeqAsync {
		s.log.Warn("ignoring unsequenced frame")
		return
	}

	args := msg.Payload
	id, err := protocol.DecodeVLQUint(&args)
	if err != nil {
		s.log.Warn("malformed request", "err", err)
		return
	}

	value, err := s.registry.Dispatch(files, uint16(id), &args)
	if err != nil {
		s.log.Debug("request failed", "cmd", id, "err", err)
	}
	errno := core.Errno(err)

	err = c.Send(msg.Sequence, protocol.MsgStatus, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQInt(output, errno)
		protocol.EncodeVLQUint(output, value)
	})
	if err != nil {
		s.log.Debug("status dropped", "seq", msg.Sequence, "err", err)
	}
}
