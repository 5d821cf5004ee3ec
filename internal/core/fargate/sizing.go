// Package fargate contains the task sizing catalog for AWS Fargate.
// This is part of the Functional Core - all functions are pure with no I/O.
package fargate

import (
	"fmt"
	"slices"
)

// Default task size used when a unit does not declare one.
const (
	DefaultCPU       = 256
	DefaultMemoryMiB = 512
)

// Size is one supported cpu setting and the memory values allowed with it.
type Size struct {
	CPU       int   `json:"cpu"`        // cpu units, 1024 = 1 vCPU
	MemoryMiB []int `json:"memory_mib"` // allowed memory values
}

// Sizes returns the supported task sizes in ascending cpu order.
func Sizes() []Size {
	return []Size{
		{CPU: 256, MemoryMiB: []int{512, 1024, 2048}},
		{CPU: 512, MemoryMiB: stepped(1024, 4096, 1024)},
		{CPU: 1024, MemoryMiB: stepped(2048, 8192, 1024)},
		{CPU: 2048, MemoryMiB: stepped(4096, 16384, 1024)},
		{CPU: 4096, MemoryMiB: stepped(8192, 30720, 1024)},
		{CPU: 8192, MemoryMiB: stepped(16384, 61440, 4096)},
		{CPU: 16384, MemoryMiB: stepped(32768, 122880, 8192)},
	}
}

func stepped(from, to, step int) []int {
	var out []int
	for m := from; m <= to; m += step {
		out = append(out, m)
	}
	return out
}

// Validate checks that cpu and memory form a supported combination.
func Validate(cpu, memoryMiB int) error {
	for _, s := range Sizes() {
		if s.CPU != cpu {
			continue
		}
		if slices.Contains(s.MemoryMiB, memoryMiB) {
			return nil
		}
		return fmt.Errorf("memory %d MiB is not supported with cpu %d (allowed %d-%d MiB)",
			memoryMiB, cpu, s.MemoryMiB[0], s.MemoryMiB[len(s.MemoryMiB)-1])
	}
	return fmt.Errorf("cpu %d is not a supported task cpu value", cpu)
}

// Smallest returns the smallest supported size that provides at least cpu
// units and memoryMiB, or false when the request exceeds the catalog.
func Smallest(cpu, memoryMiB int) (cpuOut, memOut int, ok bool) {
	for _, s := range Sizes() {
		if s.CPU < cpu {
			continue
		}
		for _, m := range s.MemoryMiB {
			if m >= memoryMiB {
				return s.CPU, m, true
			}
		}
	}
	return 0, 0, false
}
