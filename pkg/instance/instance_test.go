package instance

import (
	"strings"
	"testing"
)

func TestGetIDPrefersEnvironment(t *testing.T) {
	t.Setenv("SETTLEMENT_INSTANCE_ID", "cron-a")
	if got := GetID("cron-worker"); got != "cron-a" {
		t.Fatalf("expected cron-a got %s", got)
	}
}

func TestGetIDFallsBackToKind(t *testing.T) {
	t.Setenv("SETTLEMENT_INSTANCE_ID", "")
	if got := GetID("outbox-publisher"); !strings.HasPrefix(got, "outbox-publisher-") {
		t.Fatalf("expected kind prefix got %s", got)
	}
}
