// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package transport

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// verifyPeer checks that the process on the other end of a Unix socket
// runs as the same user as this one.
func verifyPeer(conn net.Conn) error {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil
	}
	rawConn, err := unixConn.SyscallConn()
	if err != nil {
		return fmt.Errorf("peer credentials: %w", err)
	}

	var credentials *unix.Ucred
	var credentialsErr error
	err = rawConn.Control(func(fd uintptr) {
		credentials, credentialsErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return fmt.Errorf("peer credentials: %w", err)
	}
	if credentialsErr != nil {
		return fmt.Errorf("peer credentials: %w", credentialsErr)
	}

	if int(credentials.Uid) != os.Getuid() {
		return fmt.Errorf("%w: peer pid %d runs as uid %d, expected %d",
			ErrPeerRejected, credentials.Pid, credentials.Uid, os.Getuid())
	}
	return nil
}
