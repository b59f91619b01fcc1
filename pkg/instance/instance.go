package instance

import (
	"fmt"
	"os"
)

// GetID identifies one worker replica in logs and lock ownership traces.
// SETTLEMENT_INSTANCE_ID wins; otherwise the hostname is prefixed with kind.
func GetID(kind string) string {
	if id := os.Getenv("SETTLEMENT_INSTANCE_ID"); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return kind + "-0"
	}
	return fmt.Sprintf("%s-%s", kind, host)
}
