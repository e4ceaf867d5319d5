/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

// Package size represents byte quantities (buffer sizes, file size limits,
// rotation thresholds) with human-readable parsing and formatting.
package size

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Size is a byte count, storable as plain JSON/YAML/TOML scalars and
// formattable as a human string ("5KB", "1.5GB").
type Size float64

const (
	SizeByte Size = 1
	SizeKilo      = SizeByte * 1000
	SizeMega      = SizeKilo * 1000
	SizeGiga      = SizeMega * 1000
	SizeTera      = SizeGiga * 1000
	SizePeta      = SizeTera * 1000
	SizeExa       = SizePeta * 1000
)

var units = []struct {
	suffix string
	size   Size
}{
	{"EB", SizeExa},
	{"PB", SizePeta},
	{"TB", SizeTera},
	{"GB", SizeGiga},
	{"MB", SizeMega},
	{"KB", SizeKilo},
}

// String renders s using the largest unit that keeps the mantissa >= 1.
func (s Size) String() string {
	for _, u := range units {
		if s >= u.size {
			return fmt.Sprintf("%.2f%s", float64(s)/float64(u.size), u.suffix)
		}
	}
	return fmt.Sprintf("%.0fB", float64(s))
}

// Parse reads a human size string ("5KB", "1.5 GB", "100") into a Size.
// A bare number is interpreted as a byte count.
func Parse(s string) (Size, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("size: empty value")
	}

	up := strings.ToUpper(s)
	for _, u := range units {
		if strings.HasSuffix(up, u.suffix) {
			num := strings.TrimSpace(up[:len(up)-len(u.suffix)])
			f, e := strconv.ParseFloat(num, 64)
			if e != nil {
				return 0, fmt.Errorf("size: invalid value %q: %w", s, e)
			}
			return Size(f * float64(u.size)), nil
		}
	}

	if strings.HasSuffix(up, "B") {
		s = strings.TrimSpace(s[:len(s)-1])
	}

	f, e := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if e != nil {
		return 0, fmt.Errorf("size: invalid value %q: %w", s, e)
	}
	return Size(f), nil
}

// ParseSize is a deprecated alias for Parse, kept for configuration files
// written against older releases.
func ParseSize(s string) (Size, error) {
	return Parse(s)
}

func (s Size) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(s), 'f', -1, 64)), nil
}

func (s *Size) UnmarshalText(p []byte) error {
	str := strings.TrimSpace(string(p))
	if str == "" {
		*s = 0
		return nil
	}

	if f, e := strconv.ParseFloat(str, 64); e == nil {
		*s = Size(f)
		return nil
	}

	v, e := Parse(str)
	if e != nil {
		return e
	}
	*s = v
	return nil
}

// ViperDecoderHook converts string or numeric config values into a Size,
// for registration with viper.DecodeHook / mapstructure.
func ViperDecoderHook() func(from, to reflect.Kind, data interface{}) (interface{}, error) {
	return func(from, to reflect.Kind, data interface{}) (interface{}, error) {
		if to != reflect.Float64 && to != reflect.Uint64 && to != reflect.Int64 {
			return data, nil
		}

		if from != reflect.String {
			return data, nil
		}

		str, ok := data.(string)
		if !ok {
			return data, nil
		}

		v, e := Parse(str)
		if e != nil {
			return data, nil
		}

		return float64(v), nil
	}
}
