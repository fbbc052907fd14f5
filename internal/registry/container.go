package registry

import "mcpshell/internal/container"

// inContainerEnv reports whether the process is running inside a container,
// consulted only to decide the loopback URL rewrite (invariant 6).
func inContainerEnv() bool {
	return container.Detected()
}
