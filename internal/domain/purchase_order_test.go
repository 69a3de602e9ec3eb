package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPurchaseOrder_AddLinesRecomputesTotal(t *testing.T) {
	po := PurchaseOrder{ID: "po-1", VendorID: "v1"}

	po.AddLines(
		PurchaseOrderLine{ProductID: "p-a", Quantity: dec("5"), UnitPrice: dec("2.50")},
		PurchaseOrderLine{ProductID: "p-b", Quantity: dec("3"), UnitPrice: dec("1.20")},
	)
	assert.True(t, po.TotalAmount.Equal(dec("16.10")), po.TotalAmount.String())

	po.AddLines(PurchaseOrderLine{ProductID: "p-c", Quantity: dec("0.5"), UnitPrice: dec("10")})
	assert.True(t, po.TotalAmount.Equal(dec("21.10")), po.TotalAmount.String())

	for _, l := range po.Lines {
		assert.Equal(t, "po-1", l.OrderID)
	}
}

func TestPurchaseOrder_VendorLinesAlwaysBound(t *testing.T) {
	po := PurchaseOrder{ID: "po-1", VendorID: "v1", Lines: []PurchaseOrderLine{{}, {}}}
	assert.True(t, FullyAssigned(po.VendorLines()))

	po.VendorID = ""
	assert.False(t, FullyAssigned(po.VendorLines()))
}

func TestPurchaseOrderStatus_Transitions(t *testing.T) {
	assert.True(t, PurchaseOrderDraft.CanTransitionTo(PurchaseOrderPendingApproval))
	assert.True(t, PurchaseOrderPendingApproval.CanTransitionTo(PurchaseOrderApproved))
	assert.False(t, PurchaseOrderDraft.CanTransitionTo(PurchaseOrderApproved))
	assert.False(t, PurchaseOrderApproved.CanTransitionTo(PurchaseOrderDraft))
}

func TestDispatchStatus_Transitions(t *testing.T) {
	assert.True(t, DispatchNotReady.CanTransitionTo(DispatchReadyForPickup))
	assert.True(t, DispatchReadyForPickup.CanTransitionTo(DispatchPickedUp))
	assert.True(t, DispatchPickedUp.CanTransitionTo(DispatchDelivered))
	assert.False(t, DispatchNotReady.CanTransitionTo(DispatchPickedUp))
	assert.False(t, DispatchDelivered.CanTransitionTo(DispatchNotReady))
	assert.True(t, DispatchDelivered.Valid())
	assert.False(t, DispatchStatus("lost").Valid())
}
