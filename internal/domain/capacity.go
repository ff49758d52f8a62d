package domain

import (
	"github.com/shopspring/decimal"
)

// Capacity estimation constants
var (
	// WorkingHoursPerDay is the factory's single-shift working day.
	WorkingHoursPerDay = decimal.NewFromInt(8)

	// OutsourcedDyeingDays is the fixed vendor turnaround for dyeing.
	OutsourcedDyeingDays = decimal.NewFromFloat(2.0)

	// StageBufferDays is the hand-off/transfer delay applied per stage
	// boundary.
	StageBufferDays = decimal.NewFromFloat(0.5)
)

// CapacityRequest carries the quantities for a multi-stage product run
type CapacityRequest struct {
	ProductID string

	// TotalWeightKg drives the warping/weaving/dyeing stages.
	TotalWeightKg decimal.Decimal

	// CutCount and SewCount are per-product-family piece counts for the
	// cut/sew stages.
	CutCount decimal.Decimal
	SewCount decimal.Decimal

	// PackCount drives manual packaging.
	PackCount decimal.Decimal
}

// ProcessDays is the estimated days needed for one process step
type ProcessDays struct {
	ProcessType ProcessType     `json:"processType"`
	Days        decimal.Decimal `json:"days"`
}

// CapacityEstimate is the result of a bottleneck calculation
type CapacityEstimate struct {
	PerProcess []ProcessDays   `json:"perProcess"`
	Bottleneck ProcessType     `json:"bottleneck"`
	TotalDays  decimal.Decimal `json:"totalDays"`
}

// EstimateCapacity computes per-process days from aggregate machine
// capacity and flags the bottleneck. All arithmetic is fixed-point
// decimal rounded to 2 places, half-up. Zero aggregate capacity for a
// process yields zero days rather than an error.
//
// Bottleneck ties break by the declaration order of AllProcessTypes.
func EstimateCapacity(req CapacityRequest, machines []*Machine) CapacityEstimate {
	perProcess := make([]ProcessDays, 0, len(AllProcessTypes))

	for _, processType := range AllProcessTypes {
		quantity := quantityFor(processType, req)
		days := processDays(processType, req.ProductID, quantity, machines)
		perProcess = append(perProcess, ProcessDays{ProcessType: processType, Days: days})
	}

	bottleneck := perProcess[0].ProcessType
	maxDays := perProcess[0].Days
	total := decimal.Zero

	for _, p := range perProcess {
		total = total.Add(p.Days)
		if p.Days.GreaterThan(maxDays) {
			maxDays = p.Days
			bottleneck = p.ProcessType
		}
	}

	// One buffer per boundary between consecutive stages.
	boundaries := decimal.NewFromInt(int64(len(perProcess) - 1))
	total = total.Add(StageBufferDays.Mul(boundaries)).Round(2)

	return CapacityEstimate{
		PerProcess: perProcess,
		Bottleneck: bottleneck,
		TotalDays:  total,
	}
}

func processDays(processType ProcessType, productID string, quantity decimal.Decimal, machines []*Machine) decimal.Decimal {
	if processType == ProcessDyeing {
		return OutsourcedDyeingDays
	}

	if processType == ProcessPackaging {
		daily := ManualPackagingUnitsPerHour.Mul(WorkingHoursPerDay)
		return divideDays(quantity, daily)
	}

	daily := aggregateDailyCapacity(processType, productID, machines)
	return divideDays(quantity, daily)
}

// aggregateDailyCapacity sums every matching machine's hourly capacity
// times the working hours per day
func aggregateDailyCapacity(processType ProcessType, productID string, machines []*Machine) decimal.Decimal {
	total := decimal.Zero
	for _, machine := range machines {
		if machine.Type != processType || machine.Status == MachineRetired {
			continue
		}
		total = total.Add(machine.CapacityPerHour(productID))
	}
	return total.Mul(WorkingHoursPerDay)
}

func divideDays(quantity, dailyCapacity decimal.Decimal) decimal.Decimal {
	if dailyCapacity.IsZero() || quantity.IsZero() {
		return decimal.Zero
	}
	return quantity.Div(dailyCapacity).Round(2)
}

func quantityFor(processType ProcessType, req CapacityRequest) decimal.Decimal {
	switch processType {
	case ProcessWarping, ProcessWeaving, ProcessDyeing:
		return req.TotalWeightKg
	case ProcessCutting:
		return req.CutCount
	case ProcessSewing:
		return req.SewCount
	case ProcessPackaging:
		return req.PackCount
	default:
		return decimal.Zero
	}
}
