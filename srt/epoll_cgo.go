//go:build srt

package srt

/*
#cgo LDFLAGS: -lsrt
#include <srt/srt.h>
*/
import "C"

import (
	"time"
	"unsafe"
)

// LibAPI implements API over libsrt via cgo. srt_startup must have been
// called before any method is used; the reactor does not own library
// lifecycle.
type LibAPI struct{}

func (LibAPI) EpollCreate() (int, error) {
	eid := C.srt_epoll_create()
	if eid < 0 {
		return 0, lastError()
	}
	return int(eid), nil
}

func (LibAPI) EpollAdd(eid int, s Socket, ev Events) error {
	events := C.int(ev)
	if C.srt_epoll_add_usock(C.int(eid), C.SRTSOCKET(s), &events) == C.SRT_ERROR {
		return lastError()
	}
	return nil
}

func (LibAPI) EpollUpdate(eid int, s Socket, ev Events) error {
	events := C.int(ev)
	if C.srt_epoll_update_usock(C.int(eid), C.SRTSOCKET(s), &events) == C.SRT_ERROR {
		return lastError()
	}
	return nil
}

func (LibAPI) EpollRemove(eid int, s Socket) error {
	if C.srt_epoll_remove_usock(C.int(eid), C.SRTSOCKET(s)) == C.SRT_ERROR {
		return lastError()
	}
	return nil
}

func (LibAPI) EpollUWait(eid int, out []SocketEvent, timeout time.Duration) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}
	fds := make([]C.SRT_EPOLL_EVENT, len(out))
	n := C.srt_epoll_uwait(C.int(eid),
		(*C.SRT_EPOLL_EVENT)(unsafe.Pointer(&fds[0])),
		C.int(len(fds)), C.int64_t(timeout.Milliseconds()))
	if n < 0 {
		return 0, lastError()
	}
	for i := 0; i < int(n); i++ {
		out[i] = SocketEvent{Socket: Socket(fds[i].fd), Events: Events(fds[i].events)}
	}
	return int(n), nil
}

func (LibAPI) EpollRelease(eid int) error {
	if C.srt_epoll_release(C.int(eid)) == C.SRT_ERROR {
		return lastError()
	}
	return nil
}

// SocketError reports the library's last error for the calling thread.
// libsrt keeps the last error per thread, not per socket, so the socket
// argument is ignored. The reactor calls this from its serializer worker
// while handling the error edge, not from the goroutine that ran the epoll
// wait, so the error returned is not guaranteed to be the one that belongs
// to the socket's error edge.
func (LibAPI) SocketError(_ Socket) error { return lastError() }

func lastError() error {
	return NewError(int(C.srt_getlasterror(nil)))
}
