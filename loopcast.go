// Package loopcast implements the looped, CRC-validated multicast
// broadcast protocol: a bounded payload is split into fixed-size chunks
// (chunk.go), framed into CRC-guarded wire messages (message.go),
// reassembled on the receiver side into an in-memory buffer (buffer.go),
// and driven by command-line options shared by both roles (options.go).
// conn.go adds optional traffic instrumentation on top of the transports
// in pkg/mcast.
package loopcast
