package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"fulfillment/internal/domain"
)

type AssignDeliveryRequest struct {
	LegType   string `json:"legType"`
	LegID     string `json:"legId"`
	PartnerID string `json:"partnerId"`
}

type PartnerDTO struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Status         string          `json:"status"`
	VehicleClass   string          `json:"vehicleClass"`
	Rating         decimal.Decimal `json:"rating"`
	CompletedTasks int             `json:"completedTasks"`
	Phone          string          `json:"phone,omitempty"`
	Email          string          `json:"email,omitempty"`
}

type PartnerListResponse struct {
	TraceID  string       `json:"traceId"`
	Partners []PartnerDTO `json:"partners"`
}

func NewPartnerDTO(p domain.DeliveryPartner) PartnerDTO {
	return PartnerDTO{
		ID:             p.ID,
		Name:           p.Name,
		Status:         string(p.Status),
		VehicleClass:   p.VehicleClass,
		Rating:         p.Rating,
		CompletedTasks: p.CompletedTasks,
		Phone:          p.Phone,
		Email:          p.Email,
	}
}

type DeliveryAssignmentResponse struct {
	TraceID     string     `json:"traceId"`
	ID          string     `json:"id"`
	LegType     string     `json:"legType"`
	LegID       string     `json:"legId"`
	PartnerID   string     `json:"partnerId"`
	PartnerName string     `json:"partnerName"`
	Status      string     `json:"status"`
	AssignedAt  time.Time  `json:"assignedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func NewDeliveryAssignmentResponse(traceID string, a domain.DeliveryAssignment) DeliveryAssignmentResponse {
	return DeliveryAssignmentResponse{
		TraceID:     traceID,
		ID:          a.ID,
		LegType:     string(a.Leg.Type),
		LegID:       a.Leg.ID,
		PartnerID:   a.PartnerID,
		PartnerName: a.PartnerName,
		Status:      string(a.Status),
		AssignedAt:  a.AssignedAt,
		CompletedAt: a.CompletedAt,
	}
}
