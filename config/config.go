// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Store represents a general key value structure.
// [viper.Viper] satisfies it.
type Store interface {
	Set(key string, value any)
}

// Source defines valid config sources as those who can
// serialize themselves into a key value like structure.
type Source interface {
	Apply(Store) error
}

// Manager holds the merged result of every applied [Source].
type Manager struct {
	v *viper.Viper
}

// Read applies each source, in order, to a fresh store.
// Subsequent sources override previous sources.
func Read(srcs ...Source) (*Manager, error) {
	v := viper.New()
	for _, src := range srcs {
		err := src.Apply(v)
		if err != nil {
			return nil, err
		}
	}
	return &Manager{v: v}, nil
}

// Get returns the raw value stored under key.
func (m *Manager) Get(key string) any {
	return m.v.Get(key)
}

// Unmarshal decodes the merged config into v, which must be a pointer.
func (m *Manager) Unmarshal(v any) error {
	return m.v.Unmarshal(v, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "config"
		dc.WeaklyTypedInput = true
		dc.DecodeHook = composeDecodeHooks(
			textUnmarshalerHookFunc(),
			timeDurationHookFunc(),
		)
	})
}

var errInvalidDecodeCondition = errors.New("invalid decode condition")

// TypeCoercionError occurs when a config value cannot be
// converted into the type of the struct field it targets.
type TypeCoercionError struct {
	From  reflect.Type
	To    reflect.Type
	Cause error
}

// Error implements the [error] interface.
func (e TypeCoercionError) Error() string {
	return fmt.Sprintf("failed to coerce value from %s to %s: %s", e.From, e.To, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e TypeCoercionError) Unwrap() error {
	return e.Cause
}

func composeDecodeHooks(hs ...mapstructure.DecodeHookFuncType) mapstructure.DecodeHookFuncType {
	return func(f, t reflect.Type, data any) (any, error) {
		for _, h := range hs {
			v, err := h(f, t, data)
			if err == nil {
				return v, nil
			}
			if errors.Is(err, errInvalidDecodeCondition) {
				continue
			}
			return nil, TypeCoercionError{From: f, To: t, Cause: err}
		}
		return data, nil
	}
}

func textUnmarshalerHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		s, ok := data.(string)
		if !ok {
			return nil, errInvalidDecodeCondition
		}
		result := reflect.New(t)
		u, ok := result.Interface().(encoding.TextUnmarshaler)
		if !ok {
			return nil, errInvalidDecodeCondition
		}
		err := u.UnmarshalText([]byte(s))
		if err != nil {
			return nil, err
		}
		return result.Elem().Interface(), nil
	}
}

func timeDurationHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if t != reflect.TypeOf(time.Duration(0)) {
			return nil, errInvalidDecodeCondition
		}

		switch x := data.(type) {
		case string:
			return time.ParseDuration(x)
		case int:
			return time.Duration(x), nil
		case int64:
			return time.Duration(x), nil
		default:
			return nil, errInvalidDecodeCondition
		}
	}
}
