package shipping

import "ryxel/internal/model"

// StatusMapping describes how one carrier tracking status maps onto
// the order lifecycle. Advance is empty when the event is informational
// only and does not move the top-level order status.
type StatusMapping struct {
	Description string
	Advance     model.OrderStatus
}

// statusTable maps the carrier's tracking vocabulary to internal
// descriptions. Carriers add statuses over time; anything not listed
// here is acknowledged and ignored.
var statusTable = map[string]StatusMapping{
	"ready_to_pick":     {Description: "Carrier notified, package awaiting pickup"},
	"picking":           {Description: "Carrier is collecting the package"},
	"picked":            {Description: "Package picked up by carrier", Advance: model.StatusShipped},
	"storing":           {Description: "Package stored at carrier facility"},
	"transporting":      {Description: "Package in transit"},
	"sorting":           {Description: "Package at sorting facility"},
	"delivering":        {Description: "Package out for delivery"},
	"delivered":         {Description: "Package delivered", Advance: model.StatusDelivered},
	"delivery_fail":     {Description: "Delivery attempt failed"},
	"waiting_to_return": {Description: "Package waiting to be returned"},
	"return":            {Description: "Package being returned to sender"},
	"returned":          {Description: "Package returned to sender"},
	"exception":         {Description: "Carrier reported a handling exception"},
}

// MapStatus resolves a carrier status to its internal mapping. ok is
// false for unrecognized statuses, which callers must acknowledge
// without mutating the order.
func MapStatus(carrierStatus string) (StatusMapping, bool) {
	m, ok := statusTable[carrierStatus]
	return m, ok
}
