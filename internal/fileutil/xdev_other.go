//go:build !unix

package fileutil

import "errors"

var errCrossDevice = errors.New("cross-device link")
