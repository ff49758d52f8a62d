package domain

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Errors for the Reservation entity
var (
	ErrOverlappingReservation = errors.New("machine already has an overlapping active reservation")
	ErrReservationReleased    = errors.New("reservation is already released")
)

// ReservationType distinguishes a firm production booking from a
// tentative planning booking
type ReservationType string

const (
	ReservationProduction ReservationType = "production"
	ReservationPlanning   ReservationType = "planning"
)

// ReservationStatus represents the status of a reservation
type ReservationStatus string

const (
	ReservationActive   ReservationStatus = "active"
	ReservationReleased ReservationStatus = "released"
)

// Reservation is a time-bounded claim of a machine by a stage or
// plan-stage
type Reservation struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	ReservationID string             `bson:"reservationId" json:"reservationId"`
	MachineID     string             `bson:"machineId" json:"machineId"`
	StageID       string             `bson:"stageId,omitempty" json:"stageId,omitempty"`
	PlanStageID   string             `bson:"planStageId,omitempty" json:"planStageId,omitempty"`

	Type   ReservationType   `bson:"type" json:"type"`
	Status ReservationStatus `bson:"status" json:"status"`

	WindowStart time.Time  `bson:"windowStart" json:"windowStart"`
	WindowEnd   time.Time  `bson:"windowEnd" json:"windowEnd"`
	AssignedAt  time.Time  `bson:"assignedAt" json:"assignedAt"`
	ReleasedAt  *time.Time `bson:"releasedAt,omitempty" json:"releasedAt,omitempty"`

	Audit AuditInfo `bson:"audit" json:"audit"`
}

// NewReservation creates an active reservation for a stage
func NewReservation(reservationID, machineID, stageID string, resType ReservationType, windowStart, windowEnd time.Time, actorID string) *Reservation {
	now := time.Now().UTC()
	return &Reservation{
		ID:            primitive.NewObjectID(),
		ReservationID: reservationID,
		MachineID:     machineID,
		StageID:       stageID,
		Type:          resType,
		Status:        ReservationActive,
		WindowStart:   windowStart,
		WindowEnd:     windowEnd,
		AssignedAt:    now,
		Audit: AuditInfo{
			CreatedAt: now,
			CreatedBy: actorID,
			UpdatedAt: now,
		},
	}
}

// Release marks the reservation as released
func (r *Reservation) Release(actorID string) error {
	if r.Status == ReservationReleased {
		return ErrReservationReleased
	}

	now := time.Now().UTC()
	r.Status = ReservationReleased
	r.ReleasedAt = &now
	r.Audit.Touch(actorID)
	return nil
}

// Overlaps reports whether the reservation window overlaps [from, to).
// An inverted or zero-length interval never overlaps anything.
func (r *Reservation) Overlaps(from, to time.Time) bool {
	return WindowsOverlap(r.WindowStart, r.WindowEnd, from, to)
}

// WindowsOverlap implements half-open interval overlap:
// aStart < bEnd && bStart < aEnd. Inverted or zero-length intervals are
// treated as non-overlapping with everything.
func WindowsOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !aStart.Before(aEnd) || !bStart.Before(bEnd) {
		return false
	}
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
