package core

import (
	"errors"
	"fmt"
	"strings"
)

var ErrBadSizeSyntax = errors.New("bad size syntax")

// ParseSize accepts plain bytes or a K/M/G (binary) suffix, and an S suffix
// for sectors of sectorSize bytes.
func ParseSize(s string, sectorSize int) (int64, error) {
	if s == "" {
		return 0, ErrBadSizeSyntax
	}
	mul := int64(1)
	ss := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case strings.HasSuffix(ss, "K"):
		mul = 1024
		ss = strings.TrimSuffix(ss, "K")
	case strings.HasSuffix(ss, "M"):
		mul = 1024 * 1024
		ss = strings.TrimSuffix(ss, "M")
	case strings.HasSuffix(ss, "G"):
		mul = 1024 * 1024 * 1024
		ss = strings.TrimSuffix(ss, "G")
	case strings.HasSuffix(ss, "S"):
		mul = int64(sectorSize)
		ss = strings.TrimSuffix(ss, "S")
	}
	var v int64
	var rest string
	n, _ := fmt.Sscanf(ss, "%d%s", &v, &rest)
	if n != 1 || v < 0 {
		return 0, fmt.Errorf("%q: %w", s, ErrBadSizeSyntax)
	}
	return v * mul, nil
}
