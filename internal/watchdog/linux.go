// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package watchdog

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Linux watchdog ioctls, from <linux/watchdog.h>.
const (
	wdiocSetTimeout = 0xC0045706 // WDIOC_SETTIMEOUT
)

// Device is the Linux /dev/watchdog implementation. Opening the device
// arms the hardware timer immediately.
type Device struct {
	f *os.File
}

// Open arms the hardware watchdog. The kernel rounds the timeout to
// whatever the hardware supports; a timeout of zero keeps the driver
// default.
func Open(path string, timeout time.Duration) (*Device, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("watchdog: open %s: %w", path, err)
	}

	if secs := int(timeout / time.Second); secs > 0 {
		if err := unix.IoctlSetPointerInt(int(f.Fd()), wdiocSetTimeout, secs); err != nil {
			f.Close()
			return nil, fmt.Errorf("watchdog: set timeout: %w", err)
		}
	}

	return &Device{f: f}, nil
}

// Feed resets the hardware deadline. Any write keeps the timer alive.
func (d *Device) Feed() error {
	if _, err := d.f.Write([]byte{'k'}); err != nil {
		return fmt.Errorf("watchdog: feed: %w", err)
	}
	return nil
}

// Close disarms via the magic character so an orderly shutdown does not
// reboot the board. Drivers built with CONFIG_WATCHDOG_NOWAYOUT ignore it
// and reset anyway.
func (d *Device) Close() error {
	if _, err := d.f.Write([]byte{'V'}); err != nil {
		d.f.Close()
		return fmt.Errorf("watchdog: disarm: %w", err)
	}
	return d.f.Close()
}
