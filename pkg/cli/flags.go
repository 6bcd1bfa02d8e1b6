package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// StringSlice is a repeatable string flag. Each occurrence may also hold
// a comma-separated list.
type StringSlice []string

func (s *StringSlice) String() string { return strings.Join(*s, ",") }

func (s *StringSlice) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

// KeyValues is a repeatable name=value flag.
type KeyValues map[string]string

func (kv KeyValues) String() string {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + kv[k]
	}
	return strings.Join(parts, ",")
}

func (kv KeyValues) Set(v string) error {
	name, value, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("expected name=value, got %q", v)
	}
	kv[strings.TrimSpace(name)] = strings.TrimSpace(value)
	return nil
}

// ParseOffsets reads a comma-separated list of strictly increasing byte
// offsets, each inside (0, size).
func ParseOffsets(list string, size int) ([]int, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	var out []int
	prev := 0
	for _, part := range strings.Split(list, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("split offset %q: %w", part, err)
		}
		if n <= prev || n >= size {
			return nil, fmt.Errorf("split offset %d out of order or outside (0, %d)", n, size)
		}
		out = append(out, n)
		prev = n
	}
	return out, nil
}

// Chunks cuts data at the given offsets. Every n'th byte boundary is used
// instead when every is positive.
func Chunks(data []byte, offsets []int, every int) [][]byte {
	if every > 0 {
		offsets = offsets[:0:0]
		for i := every; i < len(data); i += every {
			offsets = append(offsets, i)
		}
	}
	out := make([][]byte, 0, len(offsets)+1)
	prev := 0
	for _, o := range offsets {
		out = append(out, data[prev:o])
		prev = o
	}
	return append(out, data[prev:])
}
