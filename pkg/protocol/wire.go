// ABOUTME: Wire format for clock sync exchanges
// ABOUTME: Request marker framing and little-endian float64 timestamp replies
package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// RequestSize is the size of the request marker in bytes
	RequestSize = 4

	// ReplySize is the size of a timestamp reply in bytes
	ReplySize = 8

	// BatchSize is the number of exchanges performed per connection
	BatchSize = 60
)

// SyncMarker is the fixed request sent once per exchange ("sync")
var SyncMarker = [RequestSize]byte{0x73, 0x79, 0x6E, 0x6C}

var (
	// ErrBadMarker is returned when a request does not carry the sync marker
	ErrBadMarker = errors.New("unexpected request marker")

	// ErrBadTimestamp is returned when a reply does not decode to a finite number
	ErrBadTimestamp = errors.New("malformed timestamp")
)

// EncodeTimestamp packs seconds into a reply frame
func EncodeTimestamp(seconds float64) [ReplySize]byte {
	var buf [ReplySize]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(seconds))
	return buf
}

// DecodeTimestamp unpacks a reply frame, rejecting NaN and infinities
func DecodeTimestamp(buf []byte) (float64, error) {
	if len(buf) != ReplySize {
		return 0, fmt.Errorf("%w: %d bytes", ErrBadTimestamp, len(buf))
	}

	v := math.Float64frombits(binary.LittleEndian.Uint64(buf))
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %v", ErrBadTimestamp, v)
	}

	return v, nil
}

// WriteRequest sends one sync marker
func WriteRequest(w io.Writer) error {
	_, err := w.Write(SyncMarker[:])
	return err
}

// ReadTimestamp blocks for exactly one reply frame and decodes it
func ReadTimestamp(r io.Reader) (float64, error) {
	var buf [ReplySize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return DecodeTimestamp(buf[:])
}

// ReadRequest blocks for one request marker and validates it
func ReadRequest(r io.Reader) error {
	var buf [RequestSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	if !bytes.Equal(buf[:], SyncMarker[:]) {
		return fmt.Errorf("%w: % x", ErrBadMarker, buf)
	}
	return nil
}

// WriteTimestamp sends one reply frame
func WriteTimestamp(w io.Writer, seconds float64) error {
	buf := EncodeTimestamp(seconds)
	_, err := w.Write(buf[:])
	return err
}
