package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mes-platform/production-service/internal/domain"
)

func newCapacityServiceFixture(machines ...*domain.Machine) *CapacityApplicationService {
	return NewCapacityApplicationService(newFakeMachineRepo(machines...), testLogger())
}

func TestEstimateCapacityAcrossRegistry(t *testing.T) {
	service := newCapacityServiceFixture(
		&domain.Machine{MachineID: "W-001", Type: domain.ProcessWarping, Status: domain.MachineAvailable,
			CapacitySpec: map[string]string{"default": "25"}},
		&domain.Machine{MachineID: "L-001", Type: domain.ProcessWeaving, Status: domain.MachineAvailable,
			CapacitySpec: map[string]string{"default": "25"}},
		&domain.Machine{MachineID: "C-001", Type: domain.ProcessCutting, Status: domain.MachineAvailable,
			CapacitySpec: map[string]string{"default": "50"}},
		&domain.Machine{MachineID: "S-001", Type: domain.ProcessSewing, Status: domain.MachineAvailable,
			CapacitySpec: map[string]string{"default": "40"}},
	)

	estimate, err := service.Estimate(context.Background(), EstimateCapacityQuery{
		ProductID:     "PRD-001",
		TotalWeightKg: 1000,
		CutCount:      800,
		SewCount:      800,
		PackCount:     800,
	})
	require.NoError(t, err)

	require.Len(t, estimate.PerProcess, 6)
	days := make(map[string]string, len(estimate.PerProcess))
	for _, process := range estimate.PerProcess {
		days[process.ProcessType] = process.Days
	}

	assert.Equal(t, "5", days["WARPING"])
	assert.Equal(t, "5", days["WEAVING"])
	assert.Equal(t, "2", days["DYEING"])
	assert.Equal(t, "2", days["CUTTING"])
	assert.Equal(t, "2.5", days["SEWING"])
	assert.Equal(t, "0.67", days["PACKAGING"])

	// Ties resolve to the earliest process in the pipeline
	assert.Equal(t, "WARPING", estimate.Bottleneck)
	assert.Equal(t, "19.67", estimate.TotalDays)
}

func TestEstimateCapacityEmptyRegistry(t *testing.T) {
	service := newCapacityServiceFixture()

	estimate, err := service.Estimate(context.Background(), EstimateCapacityQuery{
		ProductID:     "PRD-001",
		TotalWeightKg: 500,
		PackCount:     1200,
	})
	require.NoError(t, err)

	// Only the fixed outsourced dyeing window and manual packaging
	// contribute; machine-bound processes degrade to zero days.
	// 2 + 1 + five 0.5 day boundaries.
	assert.Equal(t, "DYEING", estimate.Bottleneck)
	assert.Equal(t, "5.5", estimate.TotalDays)
}
