package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Scheduling constants
var (
	// OutsourcedDyeingHours is the fixed vendor turnaround for dyeing
	// (2.0 days), independent of quantity.
	OutsourcedDyeingHours = decimal.NewFromInt(48)

	// ManualPackagingUnitsPerHour is the assumed throughput of a manual
	// packaging crew.
	ManualPackagingUnitsPerHour = decimal.NewFromInt(150)
)

// SuggestionRequest describes a scheduling query for one stage
type SuggestionRequest struct {
	ProcessType      ProcessType
	ProductID        string
	RequiredQuantity decimal.Decimal
	WindowStart      time.Time
	WindowEnd        time.Time
}

// Suggestion is one ranked scheduling candidate. Virtual suggestions
// carry no machine identity.
type Suggestion struct {
	MachineID              string          `json:"machineId,omitempty"`
	MachineName            string          `json:"machineName,omitempty"`
	ProcessType            ProcessType     `json:"processType"`
	Virtual                bool            `json:"virtual"`
	CapacityPerHour        decimal.Decimal `json:"capacityPerHour"`
	EstimatedDurationHours decimal.Decimal `json:"estimatedDurationHours"`
	Available              bool            `json:"available"`
	Conflicts              []string        `json:"conflicts,omitempty"`
}

// EstimateDurationHours computes requiredQuantity / capacityPerHour
// rounded to 2 decimals, half-up. Zero capacity or zero quantity yields
// zero duration, never an error.
func EstimateDurationHours(requiredQuantity, capacityPerHour decimal.Decimal) decimal.Decimal {
	if capacityPerHour.IsZero() || requiredQuantity.IsZero() {
		return decimal.Zero
	}
	return requiredQuantity.Div(capacityPerHour).Round(2)
}

// SuggestCandidates produces ranked scheduling candidates for a request.
// Virtual process types return a single synthetic suggestion and skip
// conflict detection entirely. Unavailable machines are still returned,
// flagged with their conflicts, so planners see the full picture.
func SuggestCandidates(req SuggestionRequest, machines []*Machine, activeReservations map[string][]*Reservation) []Suggestion {
	if req.ProcessType.IsVirtual() {
		return []Suggestion{virtualSuggestion(req)}
	}

	suggestions := make([]Suggestion, 0, len(machines))
	for _, machine := range machines {
		if machine.Type != req.ProcessType || machine.Status == MachineRetired {
			continue
		}

		capacity := machine.CapacityPerHour(req.ProductID)
		suggestion := Suggestion{
			MachineID:              machine.MachineID,
			MachineName:            machine.Name,
			ProcessType:            req.ProcessType,
			CapacityPerHour:        capacity,
			EstimatedDurationHours: EstimateDurationHours(req.RequiredQuantity, capacity),
			Available:              true,
		}

		for _, reservation := range activeReservations[machine.MachineID] {
			if reservation.Status != ReservationActive {
				continue
			}
			if reservation.Overlaps(req.WindowStart, req.WindowEnd) {
				suggestion.Available = false
				suggestion.Conflicts = append(suggestion.Conflicts, fmt.Sprintf(
					"machine %s is reserved for stage %s from %s to %s",
					machine.MachineID, reservation.StageID,
					reservation.WindowStart.Format(time.RFC3339),
					reservation.WindowEnd.Format(time.RFC3339),
				))
			}
		}

		if machine.InMaintenance(req.WindowStart, req.WindowEnd) {
			suggestion.Available = false
			suggestion.Conflicts = append(suggestion.Conflicts, fmt.Sprintf(
				"machine %s is under maintenance during the requested window", machine.MachineID))
		}

		suggestions = append(suggestions, suggestion)
	}

	rankSuggestions(suggestions)
	return suggestions
}

// rankSuggestions orders candidates: available first, then higher
// capacity, then machine id for a stable order
func rankSuggestions(suggestions []Suggestion) {
	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.Available != b.Available {
			return a.Available
		}
		if !a.CapacityPerHour.Equal(b.CapacityPerHour) {
			return a.CapacityPerHour.GreaterThan(b.CapacityPerHour)
		}
		return a.MachineID < b.MachineID
	})
}

func virtualSuggestion(req SuggestionRequest) Suggestion {
	suggestion := Suggestion{
		ProcessType: req.ProcessType,
		Virtual:     true,
		Available:   true,
	}

	switch req.ProcessType {
	case ProcessDyeing:
		suggestion.EstimatedDurationHours = OutsourcedDyeingHours
	case ProcessPackaging:
		suggestion.CapacityPerHour = ManualPackagingUnitsPerHour
		suggestion.EstimatedDurationHours = EstimateDurationHours(req.RequiredQuantity, ManualPackagingUnitsPerHour)
	}

	return suggestion
}
