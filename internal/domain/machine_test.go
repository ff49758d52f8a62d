package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMachineCapacityPerHour(t *testing.T) {
	tests := []struct {
		name      string
		spec      map[string]string
		productID string
		expected  string
	}{
		{
			name:      "product-specific key wins over default",
			spec:      map[string]string{"default": "40", "PROD-001": "55"},
			productID: "PROD-001",
			expected:  "55",
		},
		{
			name:      "falls back to default key",
			spec:      map[string]string{"default": "40"},
			productID: "PROD-999",
			expected:  "40",
		},
		{
			name:      "missing spec degrades to zero",
			spec:      nil,
			productID: "PROD-001",
			expected:  "0",
		},
		{
			name:      "malformed value degrades to zero",
			spec:      map[string]string{"default": "fifty"},
			productID: "PROD-001",
			expected:  "0",
		},
		{
			name:      "negative value degrades to zero",
			spec:      map[string]string{"default": "-10"},
			productID: "PROD-001",
			expected:  "0",
		},
		{
			name:      "no matching key degrades to zero",
			spec:      map[string]string{"PROD-002": "30"},
			productID: "PROD-001",
			expected:  "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := &Machine{MachineID: "M-001", Type: ProcessWeaving, CapacitySpec: tt.spec}
			expected, _ := decimal.NewFromString(tt.expected)
			assert.True(t, expected.Equal(machine.CapacityPerHour(tt.productID)),
				"expected %s, got %s", tt.expected, machine.CapacityPerHour(tt.productID))
		})
	}
}

func TestMachineInMaintenance(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	machine := &Machine{
		MachineID: "M-001",
		MaintenanceWindows: []MaintenanceWindow{
			{Start: base, End: base.Add(4 * time.Hour)},
		},
	}

	assert.True(t, machine.InMaintenance(base.Add(time.Hour), base.Add(2*time.Hour)))
	assert.True(t, machine.InMaintenance(base.Add(-time.Hour), base.Add(time.Hour)))
	assert.False(t, machine.InMaintenance(base.Add(4*time.Hour), base.Add(6*time.Hour)))
	assert.False(t, machine.InMaintenance(base.Add(-2*time.Hour), base))
}

func TestMachineStatusFlips(t *testing.T) {
	machine := &Machine{MachineID: "M-001", Status: MachineAvailable}

	machine.MarkBusy("system")
	assert.Equal(t, MachineBusy, machine.Status)

	machine.MarkAvailable("system")
	assert.Equal(t, MachineAvailable, machine.Status)

	// Maintenance status is never flipped by the busy/available sweep
	machine.Status = MachineMaintenance
	machine.MarkBusy("system")
	assert.Equal(t, MachineMaintenance, machine.Status)
	machine.MarkAvailable("system")
	assert.Equal(t, MachineMaintenance, machine.Status)
}
