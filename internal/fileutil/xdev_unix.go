//go:build unix

package fileutil

import "golang.org/x/sys/unix"

var errCrossDevice error = unix.EXDEV
