// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package adapter

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitKey(t *testing.T) {
	testCases := []struct {
		Key  string
		Path []string
	}{
		{Key: "a", Path: []string{"a"}},
		{Key: "a[b]", Path: []string{"a", "b"}},
		{Key: "a[b][c]", Path: []string{"a", "b", "c"}},
		{Key: "a[]", Path: []string{"a", ""}},
		{Key: "a[b", Path: []string{"a[b"}},
		{Key: "[a]", Path: []string{"[a]"}},
	}

	for _, testCase := range testCases {
		t.Run("will split "+testCase.Key, func(t *testing.T) {
			if !assert.Equal(t, testCase.Path, splitKey(testCase.Key)) {
				return
			}
		})
	}
}

func TestDecodeValues(t *testing.T) {
	t.Run("will build lists", func(t *testing.T) {
		t.Run("if a key uses empty brackets", func(t *testing.T) {
			values, err := url.ParseQuery("a[]=1&a[]=2")
			if !assert.Nil(t, err) {
				return
			}

			got := decodeValues(values)
			if !assert.Equal(t, map[string]any{"a": []string{"1", "2"}}, got) {
				return
			}
		})
	})

	t.Run("will keep the first shape", func(t *testing.T) {
		t.Run("if a key is used as both a value and a map", func(t *testing.T) {
			values, err := url.ParseQuery("a=1&a[b]=2")
			if !assert.Nil(t, err) {
				return
			}

			got := decodeValues(values)
			if !assert.Equal(t, map[string]any{"a": "1"}, got) {
				return
			}
		})
	})

	t.Run("will nest maps", func(t *testing.T) {
		t.Run("if keys share a prefix", func(t *testing.T) {
			values, err := url.ParseQuery("user[name]=fn&user[address][city]=x")
			if !assert.Nil(t, err) {
				return
			}

			expected := map[string]any{
				"user": map[string]any{
					"name":    "fn",
					"address": map[string]any{"city": "x"},
				},
			}
			if !assert.Equal(t, expected, decodeValues(values)) {
				return
			}
		})
	})
}
