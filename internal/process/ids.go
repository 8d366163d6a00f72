package process

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// DefaultIDPrefix is used when a command has no usable first token.
const DefaultIDPrefix = "proc"

// IDAllocator derives default ids such as "bun-1", "bun-2" from commands.
//
// The counter is shared by every allocation from the same allocator and is
// never reset or reused, even when the resulting id is later rejected as a
// duplicate. The allocator performs no uniqueness check of its own.
type IDAllocator struct {
	counter atomic.Uint64
}

// NewIDAllocator creates an allocator starting at 1.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// Next returns "<base>-<n>" for command.
func (a *IDAllocator) Next(command string) string {
	n := a.counter.Add(1)
	return BaseName(command) + "-" + strconv.FormatUint(n, 10)
}

// BaseName returns the last path segment of the first whitespace-delimited
// token of command, e.g. "/usr/bin/bun run dev" → "bun".
func BaseName(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return DefaultIDPrefix
	}

	token := fields[0]
	if i := strings.LastIndexByte(token, '/'); i >= 0 {
		token = token[i+1:]
	}
	if token == "" {
		return DefaultIDPrefix
	}
	return token
}
