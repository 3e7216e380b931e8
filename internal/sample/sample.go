// Package sample generates deterministic integration events for tests.
package sample

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/model"
)

var (
	statuses     = []model.Status{model.StatusSuccess, model.StatusFailed, model.StatusPending}
	Integrations = []string{"Order-to-SAP", "Customer-Sync", "Inventory-Update", "Invoice-Processing"}
	messages     = []string{
		"Order placed successfully",
		"Customer record created",
		"Stock quantity updated",
		"Invoice sent to customer",
		"Payment processed",
		"Shipment confirmed",
		"Data synchronized",
		"Transaction completed",
	}
	errorMessages = []string{
		"Connection timeout to SAP",
		"Invalid data format",
		"Authentication failed",
		"Network error",
		"Service unavailable",
		"Data validation error",
		"Permission denied",
		"Resource not found",
	}
)

// Generator produces the same events for the same seed.
type Generator struct {
	rng *rand.Rand
}

func New(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Events returns n events with order ids PO-00001..PO-n, created at random
// points in the hour before now. FAILED events carry error details.
func (g *Generator) Events(n int, now time.Time) []*model.Event {
	out := make([]*model.Event, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, g.event(i, now))
	}
	return out
}

func (g *Generator) event(i int, now time.Time) *model.Event {
	orderID := fmt.Sprintf("PO-%05d", i)
	e := &model.Event{
		OrderID:         orderID,
		Status:          statuses[g.rng.IntN(len(statuses))],
		IntegrationName: Integrations[g.rng.IntN(len(Integrations))],
		Message:         messages[g.rng.IntN(len(messages))],
		CreatedAt:       now.Add(-time.Duration(g.rng.IntN(60)+1) * time.Minute).UTC(),
	}
	if g.rng.IntN(2) == 0 {
		e.PayloadFormat = model.FormatXML
		e.Payload = fmt.Sprintf("<Order><OrderId>%s</OrderId><Quantity>%d</Quantity></Order>", orderID, g.rng.IntN(100)+1)
	} else {
		e.PayloadFormat = model.FormatJSON
		e.Payload = fmt.Sprintf(`{"orderId":%q,"quantity":%d}`, orderID, g.rng.IntN(100)+1)
	}
	if e.Status == model.StatusFailed {
		e.ErrorDetails = errorMessages[g.rng.IntN(len(errorMessages))]
	}
	e.UpdatedAt = e.CreatedAt
	return e
}

// Failed returns a FAILED event for orderID with an XML payload.
func Failed(orderID string) *model.Event {
	return &model.Event{
		OrderID:         orderID,
		Status:          model.StatusFailed,
		Message:         "Order rejected",
		Payload:         fmt.Sprintf("<Order><OrderId>%s</OrderId></Order>", orderID),
		PayloadFormat:   model.FormatXML,
		ErrorDetails:    "Invalid data format",
		IntegrationName: "Order-to-SAP",
	}
}
