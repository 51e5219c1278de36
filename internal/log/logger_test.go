package log

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestInitLevelPerEnv(t *testing.T) {
	Init("dev")
	if got := zerolog.GlobalLevel(); got != zerolog.DebugLevel {
		t.Errorf("dev level = %s, want debug", got)
	}

	Init("production")
	if got := zerolog.GlobalLevel(); got != zerolog.InfoLevel {
		t.Errorf("production level = %s, want info", got)
	}
}
