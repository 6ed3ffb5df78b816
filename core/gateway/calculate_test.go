package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evidencehub/core"
)

func newPolicy(t *testing.T, required []string, optional ...string) Policy {
	t.Helper()
	pol, err := NewPolicy(core.PolicyConfig{
		ReadyThreshold:       90,
		NearlyReadyThreshold: 70,
		GatewayChecklist:     required,
		OptionalChecklist:    optional,
		OJTHoursRequired:     100,
	})
	require.NoError(t, err)
	return pol
}

func done(keys ...string) map[string]ChecklistItem {
	items := make(map[string]ChecklistItem, len(keys))
	for _, k := range keys {
		items[k] = ChecklistItem{Completed: true}
	}
	return items
}

func TestNewPolicy(t *testing.T) {
	tests := []struct {
		name    string
		conf    core.PolicyConfig
		wantErr bool
	}{
		{name: "ok", conf: core.PolicyConfig{ReadyThreshold: 90, NearlyReadyThreshold: 70, GatewayChecklist: []string{"a"}, OJTHoursRequired: 100}},
		{name: "no checklist", conf: core.PolicyConfig{ReadyThreshold: 90, NearlyReadyThreshold: 70, OJTHoursRequired: 100}},
		{name: "no ojt hours", conf: core.PolicyConfig{ReadyThreshold: 90, GatewayChecklist: []string{"a"}}, wantErr: true},
		{
			name:    "optional ojt item",
			conf:    core.PolicyConfig{ReadyThreshold: 90, OptionalChecklist: []string{KeyOJTHoursVerified}, OJTHoursRequired: 100},
			wantErr: true,
		},
		{name: "nearly above ready", conf: core.PolicyConfig{ReadyThreshold: 70, NearlyReadyThreshold: 90}, wantErr: true},
		{name: "ready above 100", conf: core.PolicyConfig{ReadyThreshold: 101}, wantErr: true},
		{name: "negative hours", conf: core.PolicyConfig{ReadyThreshold: 90, OJTHoursRequired: -1}, wantErr: true},
		{
			name:    "duplicate item",
			conf:    core.PolicyConfig{ReadyThreshold: 90, GatewayChecklist: []string{"a"}, OptionalChecklist: []string{"a"}, OJTHoursRequired: 100},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPolicy(tt.conf); (err != nil) != tt.wantErr {
				t.Errorf("NewPolicy() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCalculate(t *testing.T) {
	ten := []string{"k1", "k2", "k3", "k4", "k5", "k6", "k7", "k8", "k9", KeyOJTHoursVerified}

	tests := []struct {
		name         string
		pol          Policy
		rec          Record
		wantProgress int
		wantStatus   Readiness
		wantPassed   bool
	}{
		{
			name:         "nothing done",
			pol:          newPolicy(t, ten),
			rec:          Record{OJTHoursRequired: 100},
			wantProgress: 0, wantStatus: ReadinessNotReady,
		},
		{
			name:         "nearly ready",
			pol:          newPolicy(t, ten),
			rec:          Record{Checklist: done(ten[:7]...), OJTHoursRequired: 100},
			wantProgress: 70, wantStatus: ReadinessNearlyReady,
		},
		{
			name:         "ready",
			pol:          newPolicy(t, ten),
			rec:          Record{Checklist: done(ten[:9]...), OJTHoursRequired: 100},
			wantProgress: 90, wantStatus: ReadinessReady,
		},
		{
			name:         "passed",
			pol:          newPolicy(t, ten),
			rec:          Record{Checklist: done(ten[:9]...), OJTHoursCompleted: 100, OJTHoursRequired: 100},
			wantProgress: 100, wantStatus: ReadinessGatewayPassed, wantPassed: true,
		},
		{
			name:         "optional items do not count",
			pol:          newPolicy(t, []string{"a", "b"}, "c"),
			rec:          Record{Checklist: done("a", "b", "c"), OJTHoursCompleted: 100, OJTHoursRequired: 100},
			wantProgress: 100, wantStatus: ReadinessGatewayPassed, wantPassed: true,
		},
		{
			name:         "ojt hours derived",
			pol:          newPolicy(t, []string{"a", KeyOJTHoursVerified}),
			rec:          Record{Checklist: done("a", KeyOJTHoursVerified), OJTHoursCompleted: 99, OJTHoursRequired: 100},
			wantProgress: 50, wantStatus: ReadinessNotReady,
		},
		{
			name:         "ojt hours exceeded",
			pol:          newPolicy(t, []string{"a", KeyOJTHoursVerified}),
			rec:          Record{Checklist: done("a"), OJTHoursCompleted: 150, OJTHoursRequired: 100},
			wantProgress: 100, wantStatus: ReadinessGatewayPassed, wantPassed: true,
		},
		{
			name:         "zero required items",
			pol:          Policy{ReadyThreshold: 90, NearlyThreshold: 70, Checklist: []ChecklistDef{{Key: "c"}}},
			rec:          Record{},
			wantProgress: 100, wantStatus: ReadinessGatewayPassed, wantPassed: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := Calculate(tt.pol, tt.rec)
			assert.Equal(t, tt.wantProgress, st.OverallProgress, "OverallProgress")
			assert.Equal(t, tt.wantStatus, st.ReadinessStatus, "ReadinessStatus")
			assert.Equal(t, tt.wantPassed, st.GatewayPassed, "GatewayPassed")
		})
	}
}

func TestNewPolicy_AddsOJTItem(t *testing.T) {
	pol := newPolicy(t, []string{"a"}, "c")
	def, ok := pol.Def(KeyOJTHoursVerified)
	require.True(t, ok)
	assert.True(t, def.Required)

	st := Calculate(pol, Record{Checklist: done("a"), OJTHoursRequired: 100})
	assert.False(t, st.GatewayPassed, "hours still missing")
	assert.Equal(t, 50, st.OverallProgress)
}

func TestCalculate_OJT(t *testing.T) {
	pol := newPolicy(t, []string{KeyOJTHoursVerified})

	st := Calculate(pol, Record{OJTHoursCompleted: 150, OJTHoursRequired: 100})
	assert.True(t, st.OJTHoursVerified)
	assert.Equal(t, 100, st.OJTPercentage, "capped")

	st = Calculate(pol, Record{OJTHoursCompleted: 33.3, OJTHoursRequired: 100})
	assert.False(t, st.OJTHoursVerified)
	assert.Equal(t, 33, st.OJTPercentage)
	require.Len(t, st.Checklist, 1)
	assert.True(t, st.Checklist[0].Derived)
	assert.False(t, st.Checklist[0].Completed)
}
