package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MachineStatus represents the operational status of a machine
type MachineStatus string

const (
	MachineAvailable   MachineStatus = "available"
	MachineBusy        MachineStatus = "busy"
	MachineMaintenance MachineStatus = "maintenance"
	MachineRetired     MachineStatus = "retired"
)

// CapacityKeyDefault is the capability map key consulted when no
// product-specific key is present
const CapacityKeyDefault = "default"

// MaintenanceWindow represents a scheduled maintenance interval
type MaintenanceWindow struct {
	Start  time.Time `bson:"start" json:"start"`
	End    time.Time `bson:"end" json:"end"`
	Reason string    `bson:"reason,omitempty" json:"reason,omitempty"`
}

// Covers reports whether the window overlaps the interval [from, to)
func (w MaintenanceWindow) Covers(from, to time.Time) bool {
	return w.Start.Before(to) && from.Before(w.End)
}

// Machine is an entity in the machine registry
type Machine struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	MachineID string             `bson:"machineId" json:"machineId"`
	Name      string             `bson:"name" json:"name"`
	Type      ProcessType        `bson:"type" json:"type"`
	Status    MachineStatus      `bson:"status" json:"status"`

	// CapacitySpec maps a product id (or "default") to an hourly
	// capacity expressed as a decimal string, e.g. {"default": "50"}.
	CapacitySpec map[string]string `bson:"capacitySpec,omitempty" json:"capacitySpec,omitempty"`

	MaintenanceWindows []MaintenanceWindow `bson:"maintenanceWindows,omitempty" json:"maintenanceWindows,omitempty"`

	Audit   AuditInfo `bson:"audit" json:"audit"`
	Version int64     `bson:"version" json:"version"`
}

// CapacityPerHour resolves the machine's hourly capacity for a product.
// A product-specific key takes precedence over "default". A missing or
// malformed specification degrades to zero capacity, never an error: a
// planner must still see some suggestion, even a poor one.
func (m *Machine) CapacityPerHour(productID string) decimal.Decimal {
	if len(m.CapacitySpec) == 0 {
		return decimal.Zero
	}

	raw, ok := m.CapacitySpec[productID]
	if !ok || raw == "" {
		raw, ok = m.CapacitySpec[CapacityKeyDefault]
		if !ok || raw == "" {
			return decimal.Zero
		}
	}

	capacity, err := decimal.NewFromString(raw)
	if err != nil || capacity.IsNegative() {
		return decimal.Zero
	}
	return capacity
}

// InMaintenance reports whether any maintenance window overlaps the
// interval [from, to)
func (m *Machine) InMaintenance(from, to time.Time) bool {
	for _, w := range m.MaintenanceWindows {
		if w.Covers(from, to) {
			return true
		}
	}
	return false
}

// MarkBusy flags the machine as busy with a stage
func (m *Machine) MarkBusy(actorID string) {
	if m.Status == MachineAvailable {
		m.Status = MachineBusy
		m.Audit.Touch(actorID)
	}
}

// MarkAvailable flags the machine as available again
func (m *Machine) MarkAvailable(actorID string) {
	if m.Status == MachineBusy {
		m.Status = MachineAvailable
		m.Audit.Touch(actorID)
	}
}
