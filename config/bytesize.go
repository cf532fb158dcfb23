// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// ByteSize is a number of bytes which can be decoded from strings
// like "100kb", "1.5mb" or "512".
//
// Units without an explicit "i" are binary multiples, so "1kb"
// is 1024 bytes.
type ByteSize uint64

// ParseByteSize parses s into a [ByteSize].
func ParseByteSize(s string) (ByteSize, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	if raw == "" {
		return 0, nil
	}

	n, err := humanize.ParseBytes(binaryUnits(raw))
	if err != nil {
		return 0, InvalidByteSizeError{Value: s, Cause: err}
	}
	if n > math.MaxInt64 {
		return 0, InvalidByteSizeError{Value: s, Cause: ErrByteSizeTooLarge}
	}
	return ByteSize(n), nil
}

// ErrByteSizeTooLarge is the cause of an [InvalidByteSizeError] for
// sizes which do not fit in an int64.
var ErrByteSizeTooLarge = errors.New("byte size exceeds the maximum int64 value")

func binaryUnits(s string) string {
	num := strings.TrimRight(s, "kmgtpeb ")
	unit := strings.TrimSpace(s[len(num):])
	switch unit {
	case "k", "kb", "m", "mb", "g", "gb", "t", "tb", "p", "pb", "e", "eb":
		return num + unit[:1] + "ib"
	default:
		return s
	}
}

// InvalidByteSizeError
type InvalidByteSizeError struct {
	Value string
	Cause error
}

// Error implements the [error] interface.
func (e InvalidByteSizeError) Error() string {
	return fmt.Sprintf("invalid byte size %q: %s", e.Value, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidByteSizeError) Unwrap() error {
	return e.Cause
}

// UnmarshalText implements the [encoding.TextUnmarshaler] interface.
func (b *ByteSize) UnmarshalText(text []byte) error {
	n, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = n
	return nil
}

// Int64 returns b as an int64, which is what [net/http.MaxBytesReader] expects.
func (b ByteSize) Int64() int64 {
	return int64(b)
}

// String renders b with binary units, e.g. "100 KiB".
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}
