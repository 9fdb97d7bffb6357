package release

import (
	"strconv"
	"strings"
)

var sizeSuffixes = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// HumanSize formats bytes with 1024-based units and at most two decimals,
// e.g. 1536 -> "1.5 KiB".
func HumanSize(bytes int64) string {
	size := float64(bytes)
	idx := 0
	for size >= 1024 && idx < len(sizeSuffixes)-1 {
		size /= 1024
		idx++
	}
	s := strconv.FormatFloat(size, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s + " " + sizeSuffixes[idx]
}
