/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package ioutils carries the teacher's small collection of filesystem
// helpers that don't belong to any one domain package. NewTempFile is the
// one this repo exercises: a fresh, close-and-keep temporary file for a
// one-shot textual dump, per the pattern in the upstream ioutils package.
package ioutils

import (
	"os"
	"path/filepath"

	"github.com/nabbar/sniproxy/errors"
)

// NewTempFile creates and returns a new, empty temporary file in the
// system's temp directory. The caller owns the returned file: write to it,
// then Close (DelTempFile closes and removes it instead, for callers that
// don't want to keep the dump around).
func NewTempFile() (*os.File, errors.Error) {
	f, e := os.CreateTemp(os.TempDir(), "")
	return f, errors.IfError(errors.MinPkgIOUtils, "cannot create temp file", e)
}

// GetTempFilePath returns the path NewTempFile's file was created at, or ""
// if f is nil.
func GetTempFilePath(f *os.File) string {
	if f == nil {
		return ""
	}
	return filepath.Join(os.TempDir(), filepath.Base(f.Name()))
}

// DelTempFile closes f and removes it from disk.
func DelTempFile(f *os.File) errors.Error {
	if f == nil {
		return nil
	}
	n := GetTempFilePath(f)
	e1 := f.Close()
	e2 := os.Remove(n)
	return errors.IfError(errors.MinPkgIOUtils, "cannot close/remove temp file", e1, e2)
}
