//go:build !tinygo

package i2cmaster

// interruptState is a placeholder on regular Go; refcount mutation needs no
// real interrupt masking on host builds (core/interrupt_go.go's convention).
type interruptState uintptr

func disableInterrupts() interruptState { return 0 }

func restoreInterrupts(interruptState) {}
