package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]POStatus{
		{PODraft, POSubmitted},
		{POSubmitted, POOrdered},
		{POOrdered, POShipped},
		{POShipped, POPartiallyReceived},
		{POShipped, POReceived},
		{POPartiallyReceived, POShipped},
		{POPartiallyReceived, POPartiallyReceived},
		{POPartiallyReceived, POReceived},
		{PODraft, POCancelled},
		{POSubmitted, POCancelled},
		{POOrdered, POCancelled},
		{POShipped, POCancelled},
		{POPartiallyReceived, POCancelled},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	rejected := [][2]POStatus{
		{PODraft, POOrdered},
		{PODraft, POShipped},
		{POSubmitted, PODraft},
		{POOrdered, POReceived},
		{POShipped, POShipped},
		{POReceived, POCancelled},
		{POCancelled, POCancelled},
		{POReceived, POShipped},
		{POCancelled, PODraft},
	}
	for _, tr := range rejected {
		assert.False(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestPurchaseOrderTotal(t *testing.T) {
	po := &PurchaseOrder{
		ShippingCost: decimal.RequireFromString("12.95"),
		Tax:          decimal.RequireFromString("4.10"),
		Lines: []PurchaseOrderLine{
			{Quantity: 3, UnitCost: decimal.RequireFromString("18.3333")},
			{Quantity: 1, UnitCost: decimal.RequireFromString("149.00")},
		},
	}

	assert.True(t, po.Subtotal().Equal(decimal.RequireFromString("203.9999")), "subtotal %s", po.Subtotal())
	assert.Equal(t, "221.05", po.Total().StringFixed(2))
}

func TestPurchaseOrderTotal_NoLines(t *testing.T) {
	po := &PurchaseOrder{ShippingCost: decimal.NewFromInt(5), Tax: decimal.Zero}
	assert.Equal(t, "5.00", po.Total().StringFixed(2))
	assert.False(t, po.FullyReceived())
}

func poLines() []PurchaseOrderLine {
	return []PurchaseOrderLine{
		{ID: 11, LineNumber: 1, PartNumber: "W10295370A", Quantity: 10, QuantityReceived: 0, UnitCost: decimal.NewFromInt(9)},
		{ID: 12, LineNumber: 2, PartNumber: "DC97-16782A", Quantity: 2, QuantityReceived: 1, UnitCost: decimal.NewFromInt(40)},
	}
}

func TestPlanReceipt_FullLineThenOverReceipt(t *testing.T) {
	lines := poLines()

	plan, err := planReceipt(1, lines, []Delivery{{LineID: 11, Quantity: 10}})
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, 10, plan[0].quantity)

	lines[0].QuantityReceived = 10
	_, err = planReceipt(1, lines, []Delivery{{LineID: 11, Quantity: 1}})

	var over *OverReceiptError
	require.True(t, errors.As(err, &over))
	assert.Equal(t, 11, over.LineID)
	assert.Equal(t, 10, over.Ordered)
	assert.Equal(t, 10, over.Received)
	assert.ErrorIs(t, err, ErrOverReceipt)
}

func TestPlanReceipt_AggregatesDuplicateDeliveries(t *testing.T) {
	_, err := planReceipt(1, poLines(), []Delivery{{LineID: 12, Quantity: 1}, {LineID: 12, Quantity: 1}})
	assert.ErrorIs(t, err, ErrOverReceipt, "two deliveries of 1 exceed the single outstanding unit")

	plan, err := planReceipt(1, poLines(), []Delivery{{LineID: 11, Quantity: 4}, {LineID: 11, Quantity: 3}})
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, 7, plan[0].quantity)
}

func TestPlanReceipt_RejectsBadInput(t *testing.T) {
	_, err := planReceipt(1, poLines(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = planReceipt(1, poLines(), []Delivery{{LineID: 11, Quantity: 0}})
	var neg *NegativeQuantityError
	assert.True(t, errors.As(err, &neg))

	_, err = planReceipt(1, poLines(), []Delivery{{LineID: 99, Quantity: 1}})
	assert.ErrorIs(t, err, ErrNotFound)

	// A bad delivery anywhere rejects the whole batch.
	_, err = planReceipt(1, poLines(), []Delivery{{LineID: 11, Quantity: 2}, {LineID: 12, Quantity: 5}})
	assert.ErrorIs(t, err, ErrOverReceipt)
}

func TestPlanReceipt_SortedByPartNumber(t *testing.T) {
	plan, err := planReceipt(1, poLines(), []Delivery{{LineID: 11, Quantity: 1}, {LineID: 12, Quantity: 1}})
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, "DC97-16782A", plan[0].line.PartNumber)
	assert.Equal(t, "W10295370A", plan[1].line.PartNumber)
}

func TestStatusAfterReceipt(t *testing.T) {
	lines := poLines()

	plan, err := planReceipt(1, lines, []Delivery{{LineID: 11, Quantity: 10}})
	require.NoError(t, err)
	assert.Equal(t, POPartiallyReceived, statusAfterReceipt(lines, plan))

	plan, err = planReceipt(1, lines, []Delivery{{LineID: 11, Quantity: 10}, {LineID: 12, Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, POReceived, statusAfterReceipt(lines, plan))
}

func TestFormatDocumentNumber(t *testing.T) {
	assert.Equal(t, "PO-2025-00042", formatDocumentNumber("PO", 2025, 42))
}
