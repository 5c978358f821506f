// ABOUTME: Clock sync wire protocol package
// ABOUTME: Encodes and decodes the request marker and timestamp replies
// Package protocol implements the clocksync wire protocol.
//
// A follower writes the 4-byte "sync" marker and the time source answers
// with its local time as an 8-byte little-endian IEEE-754 double in
// fractional seconds. One request is outstanding at a time.
//
// Example:
//
//	if err := protocol.WriteRequest(conn); err != nil { ... }
//	remote, err := protocol.ReadTimestamp(conn)
package protocol
