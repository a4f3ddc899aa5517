// Package protocol provides the VLQ encoding, CRC16 checksum, and buffer
// primitives the driver core's wire-level code is built from.
package protocol

// MessageMax bounds the scratch and FIFO buffer sizes buffers.go allocates.
const MessageMax = 512
