// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseByteSize(t *testing.T) {
	testCases := []struct {
		Name  string
		Input string
		Size  ByteSize
	}{
		{Name: "empty", Input: "", Size: 0},
		{Name: "plain number", Input: "512", Size: 512},
		{Name: "kilobytes", Input: "100kb", Size: 100 * 1024},
		{Name: "upper case with space", Input: "1 MB", Size: 1024 * 1024},
		{Name: "explicit binary unit", Input: "2KiB", Size: 2048},
		{Name: "fractional", Input: "1.5kb", Size: 1536},
		{Name: "largest binary unit", Input: "7eb", Size: 7 << 60},
	}

	for _, testCase := range testCases {
		t.Run("will parse "+testCase.Name, func(t *testing.T) {
			size, err := ParseByteSize(testCase.Input)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, testCase.Size, size) {
				return
			}
		})
	}

	t.Run("will return an InvalidByteSizeError", func(t *testing.T) {
		t.Run("if the value is not a size", func(t *testing.T) {
			_, err := ParseByteSize("huge")

			var berr InvalidByteSizeError
			if !assert.ErrorAs(t, err, &berr) {
				return
			}
			if !assert.NotEmpty(t, berr.Error()) {
				return
			}
		})

		t.Run("if the value does not fit in an int64", func(t *testing.T) {
			_, err := ParseByteSize("8eb")

			var berr InvalidByteSizeError
			if !assert.ErrorAs(t, err, &berr) {
				return
			}
			if !assert.ErrorIs(t, err, ErrByteSizeTooLarge) {
				return
			}
		})
	})
}
