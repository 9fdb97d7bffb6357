package release

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHumanSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1, "1 B"},
		{1023, "1023 B"},
		{1024, "1 KiB"},
		{1536, "1.5 KiB"},
		{1024*1024 + 10*1024, "1.01 MiB"},
		{5 * 1024 * 1024 * 1024, "5 GiB"},
		{1 << 50, "1 PiB"},
		{1 << 60, "1024 PiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HumanSize(tt.in), "HumanSize(%d)", tt.in)
	}
}
