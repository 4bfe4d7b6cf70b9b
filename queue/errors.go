// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package queue

import (
	"errors"

	"code.hybscloud.com/iox"
)

// errWouldBlock is returned internally by the non-blocking primitives
// backing each lock-free ring ([Blocking] does not use it). It never
// escapes this package — Push/Pop translate it into a blocking wait. It
// is an alias of [iox.ErrWouldBlock] for ecosystem consistency, matching
// the convention established by code.hybscloud.com/lfq, the library this
// package's lock-free rings are ported from.
var errWouldBlock = iox.ErrWouldBlock

// ErrClosed is returned by Push once a queue has been closed, and by Pop
// once a closed queue has been fully drained of buffered elements.
var ErrClosed = errors.New("queue: closed")

// isWouldBlock reports whether err is the internal non-blocking sentinel.
func isWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}
