//go:build tinygo

package i2cmaster

import "runtime/interrupt"

type interruptState = interrupt.State

func disableInterrupts() interruptState { return interrupt.Disable() }

func restoreInterrupts(s interruptState) { interrupt.Restore(s) }
