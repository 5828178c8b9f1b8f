package fixture

import "fmt"

// defaultInput is the create payload before parent ids and overrides land on
// top. Every name-like field carries the minted marker so sweeps can find
// the row later.
func defaultInput(kind Kind, m Minted) map[string]any {
	switch kind {
	case KindUser:
		return map[string]any{
			"name":     m.Name,
			"email":    m.Email,
			"password": fmt.Sprintf("Fixture#%04d", m.Seq),
			"role":     "member",
		}
	case KindCustomer:
		return map[string]any{
			"name":   m.Name,
			"email":  m.Email,
			"phone":  "+1-555-0100",
			"status": "active",
		}
	case KindOrder:
		return map[string]any{
			"order_number": m.Name,
			"status":       "draft",
		}
	case KindOrderItem:
		return map[string]any{
			"description": m.Name,
			"quantity":    1,
			"unit_price":  100.00,
		}
	case KindInvoice:
		return map[string]any{
			"invoice_number": m.Name,
			"amount":         250.00,
			"status":         "open",
		}
	case KindProductionOrder:
		return map[string]any{
			"reference": m.Name,
			"quantity":  1,
			"status":    "planned",
		}
	case KindShipment:
		return map[string]any{
			"tracking_number": m.Name,
			"carrier":         "UPS",
			"status":          "pending",
		}
	case KindPaymentAllocation:
		return map[string]any{
			"amount": 100.00,
		}
	case KindTask:
		return map[string]any{
			"title":  m.Name,
			"status": "open",
		}
	default:
		return map[string]any{"name": m.Name}
	}
}
