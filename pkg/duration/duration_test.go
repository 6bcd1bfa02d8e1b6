package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScriptBudgetsAreShort(t *testing.T) {
	for name, d := range map[string]time.Duration{
		"HookTimeout":  HookTimeout,
		"TagTimeout":   TagTimeout,
		"RouteTimeout": RouteTimeout,
	} {
		assert.Greater(t, d, time.Duration(0), name)
		assert.Less(t, d, time.Second, name)
	}
}

func TestScriptLoadExceedsHookBudget(t *testing.T) {
	assert.Greater(t, ScriptLoad, HookTimeout)
}

func TestTelemetryOrdering(t *testing.T) {
	assert.Greater(t, TraceConnect, TraceShutdown)
}
