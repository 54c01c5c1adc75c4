package main

import (
	"errors"
	"testing"

	"github.com/voxelwatch/scanner/internal/apperr"
)

func TestExitCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"interrupted", errInterrupted, 130},
		{"config error", apperr.NewConfig("bad config"), 2},
		{"runtime error", errors.New("boom"), 1},
		{"store error", apperr.WrapStore("writing", errors.New("disk full")), 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCode(tc.err); got != tc.want {
				t.Errorf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}
