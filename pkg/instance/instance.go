// Package instance names the running replica for logs and lock ownership.
package instance

import (
	"os"
	"strings"
)

// ID prefers the platform dyno name, then the host name.
func ID() string {
	for _, key := range []string{"DYNO", "HOSTNAME"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
