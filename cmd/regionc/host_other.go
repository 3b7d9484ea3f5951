//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package main

import "runtime"

// hostInfo describes the operating system the driver runs on.
func hostInfo() string {
	return runtime.GOOS + " " + runtime.GOARCH
}
