// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
)

// File is a YAML [Source] read from a path on disk.
type File struct {
	fsys     fs.FS
	path     string
	optional bool
}

// FileOption
type FileOption func(*File)

// Optional makes a missing file apply nothing instead of failing.
func Optional() FileOption {
	return func(f *File) {
		f.optional = true
	}
}

// FromFile returns a Source reading the YAML file at path.
func FromFile(path string, opts ...FileOption) File {
	f := File{
		fsys: os.DirFS("."),
		path: path,
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// Apply implements the Source interface.
func (src File) Apply(store Store) error {
	if src.path == "" {
		return nil
	}

	var (
		b   []byte
		err error
	)
	if fs.ValidPath(src.path) {
		b, err = fs.ReadFile(src.fsys, src.path)
	} else {
		b, err = os.ReadFile(src.path)
	}
	if errors.Is(err, fs.ErrNotExist) && src.optional {
		return nil
	}
	if err != nil {
		return err
	}
	return FromYaml(bytes.NewReader(b)).Apply(store)
}
