//go:build !linux

package jt9decode

import "fmt"

func createSysvRegion(_ string, _ int) (Region, error) {
	return nil, fmt.Errorf("%w: System V shared memory is only supported on Linux", ErrProtocol)
}

func createPosixRegion(_ string, _ int) (Region, error) {
	return nil, fmt.Errorf("%w: POSIX shared memory is only supported on Linux", ErrProtocol)
}
