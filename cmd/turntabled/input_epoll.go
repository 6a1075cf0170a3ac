//go:build linux

package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// startSensorReaders reads all sensor devices on a single goroutine using epoll.
//
// One reader for both sensors keeps the kernel's delivery order between the light
// and hall devices, so light samples are not overtaken by a later hall tick.
func startSensorReaders(ctx context.Context, files []*os.File, events chan<- rawEvent, readErr chan<- error) {
	go readInputEventsEpoll(ctx, files, events, readErr)
}

// readInputEventsEpoll reads from multiple input devices using epoll.
// It returns when ctx is canceled, even while blocked in epoll_wait.
func readInputEventsEpoll(ctx context.Context, files []*os.File, events chan<- rawEvent, readErr chan<- error) {
	if len(files) == 0 {
		reportReadErr(ctx, readErr, fmt.Errorf("no input devices provided"))
		return
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		reportReadErr(ctx, readErr, fmt.Errorf("epoll_create1: %w", err))
		return
	}
	defer unix.Close(epfd)

	// wakeFd becomes readable on cancellation and unblocks epoll_wait.
	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		reportReadErr(ctx, readErr, fmt.Errorf("eventfd: %w", err))
		return
	}
	defer unix.Close(wakeFd)

	wake := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &wake); err != nil {
		reportReadErr(ctx, readErr, fmt.Errorf("epoll_ctl_add eventfd: %w", err))
		return
	}

	woke := make(chan struct{})
	stopWake := context.AfterFunc(ctx, func() {
		defer close(woke)
		var one [8]byte
		one[0] = 1 // little endian uint64(1)
		_, _ = unix.Write(wakeFd, one[:])
	})
	// wakeFd must stay open until a started wake write has finished.
	defer func() {
		if !stopWake() {
			<-woke
		}
	}()

	// Map file descriptors to files for later identification
	fdToFile := make(map[int]*os.File)

	for _, f := range files {
		fd := int(f.Fd())
		fdToFile[fd] = f

		event := unix.EpollEvent{
			Events: unix.EPOLLIN,
			Fd:     int32(fd),
		}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
			reportReadErr(ctx, readErr, fmt.Errorf("epoll_ctl_add %s: %w", f.Name(), err))
			return
		}
	}

	const maxEvents = 32
	epollEvents := make([]unix.EpollEvent, maxEvents)
	buf := make([]byte, binary.Size(inputEvent{}))
	reader := bytes.NewReader(buf)

	for {
		// -1 = wait indefinitely
		n, err := unix.EpollWait(epfd, epollEvents, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			reportReadErr(ctx, readErr, fmt.Errorf("epoll_wait: %w", err))
			return
		}

		for i := 0; i < n; i++ {
			fd := int(epollEvents[i].Fd)
			if fd == wakeFd {
				return
			}
			f := fdToFile[fd]

			// Any device error is fatal: a lost sensor means lost observations.
			if epollEvents[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				reportReadErr(ctx, readErr, fmt.Errorf("device error/hangup: %s (fd=%d)", f.Name(), fd))
				return
			}

			if _, err := f.Read(buf); err != nil {
				reportReadErr(ctx, readErr, fmt.Errorf("read from %s: %w", f.Name(), err))
				return
			}

			ev, err := decodeInputEvent(reader, buf)
			if err != nil {
				continue
			}

			select {
			case events <- rawEvent{Device: f.Name(), Event: ev}:
			case <-ctx.Done():
				return
			}
		}
	}
}
