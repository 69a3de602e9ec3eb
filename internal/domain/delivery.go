package domain

import (
	"database/sql/driver"
	"time"

	"github.com/shopspring/decimal"
)

type PartnerStatus string

const (
	PartnerAvailable PartnerStatus = "available"
	PartnerBusy      PartnerStatus = "busy"
	PartnerOffline   PartnerStatus = "offline"
)

func (s PartnerStatus) Valid() bool {
	return s == PartnerAvailable || s == PartnerBusy || s == PartnerOffline
}

func (s *PartnerStatus) Scan(src any) error { return scanStatus("partner status", s, src) }

func (s PartnerStatus) Value() (driver.Value, error) { return statusValue("partner status", s) }

type DeliveryPartner struct {
	ID             string
	Name           string
	Status         PartnerStatus
	VehicleClass   string
	Rating         decimal.Decimal
	CompletedTasks int
	Phone          string
	Email          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LegType names what a delivery leg moves.
type LegType string

const (
	LegPurchaseOrder      LegType = "purchase_order"
	LegProcurementRequest LegType = "procurement_request"
	LegOrder              LegType = "order"
)

func (t LegType) Valid() bool {
	return t == LegPurchaseOrder || t == LegProcurementRequest || t == LegOrder
}

func (t *LegType) Scan(src any) error { return scanStatus("leg type", t, src) }

func (t LegType) Value() (driver.Value, error) { return statusValue("leg type", t) }

func ParseLegType(s string) (LegType, error) {
	return parseStatus[LegType]("leg type", s)
}

type Leg struct {
	Type LegType
	ID   string
}

type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "active"
	AssignmentCompleted AssignmentStatus = "completed"
)

func (s AssignmentStatus) Valid() bool {
	return s == AssignmentActive || s == AssignmentCompleted
}

func (s *AssignmentStatus) Scan(src any) error { return scanStatus("assignment status", s, src) }

func (s AssignmentStatus) Value() (driver.Value, error) {
	return statusValue("assignment status", s)
}

type DeliveryAssignment struct {
	ID          string
	Leg         Leg
	PartnerID   string
	PartnerName string
	Status      AssignmentStatus
	AssignedAt  time.Time
	CompletedAt *time.Time
}
