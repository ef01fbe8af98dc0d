package sandbox

import (
	"slices"
	"time"
)

// Policy defines resource limits for sandbox execution.
type Policy struct {
	MaxMemory      string        // Docker memory limit (e.g. "256m")
	MaxTimeout     time.Duration // Wall-clock limit for one run
	MaxOutputBytes int           // Cap applied to stdout and stderr separately
	Network        bool          // Whether network access is allowed (docker only)
	Images         []string      // Allowed Docker images
}

// DefaultPolicy returns safe defaults for snippet execution.
func DefaultPolicy() Policy {
	return Policy{
		MaxMemory:      "256m",
		MaxTimeout:     10 * time.Second,
		MaxOutputBytes: 1 << 20,
		Network:        false,
		Images: []string{
			"python:3.12-slim",
			"python:3.13-slim",
		},
	}
}

// IsImageAllowed checks if an image is on the allowlist.
func (p Policy) IsImageAllowed(image string) bool {
	return slices.Contains(p.Images, image)
}

func (p Policy) timeout() time.Duration {
	if p.MaxTimeout <= 0 {
		return DefaultPolicy().MaxTimeout
	}
	return p.MaxTimeout
}
