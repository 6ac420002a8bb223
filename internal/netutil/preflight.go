// Package netutil implements the port-preflight behavior the three
// services run before binding their listener: if a prior instance still
// holds the port, ask it to terminate, wait briefly, and check again.
package netutil

import (
	"context"
	"fmt"
	"time"

	gopsnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/sirupsen/logrus"
)

const preflightWait = 1 * time.Second

// Preflight finds any process already listening on port and asks it to
// terminate, waits preflightWait, and checks once more. It returns ctx's
// error if ctx ends during the wait, and otherwise an error only if the
// port is still held after the retry — the caller
// should treat that as fatal, per the specification's exit-code contract.
func Preflight(ctx context.Context, port int, log *logrus.Entry) error {
	pid, err := listenerPID(port)
	if err != nil {
		log.WithError(err).Debug("preflight: could not enumerate listening sockets, proceeding")
		return nil
	}
	if pid == 0 {
		return nil
	}

	log.WithFields(logrus.Fields{"port": port, "pid": pid}).Warn("port held by a prior instance, requesting graceful shutdown")
	if err := terminate(pid); err != nil {
		log.WithError(err).Warn("preflight: failed to signal prior instance")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(preflightWait):
	}

	pid, err = listenerPID(port)
	if err != nil {
		return nil
	}
	if pid != 0 {
		return fmt.Errorf("port %d still held by pid %d after graceful-termination retry", port, pid)
	}
	return nil
}

// listenerPID returns the pid listening on port, or 0 if none is found.
func listenerPID(port int) (int32, error) {
	conns, err := gopsnet.Connections("inet")
	if err != nil {
		return 0, err
	}
	for _, c := range conns {
		if c.Status == "LISTEN" && c.Laddr.Port == uint32(port) {
			return c.Pid, nil
		}
	}
	return 0, nil
}

func terminate(pid int32) error {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return err
	}
	return proc.Terminate()
}
