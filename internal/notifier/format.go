package notifier

import (
	"fmt"
	"strings"

	"github.com/comeencasa/restaurant-api/internal/event"
	pkgkafka "github.com/comeencasa/restaurant-api/pkg/kafka"
)

// Format renders evt as a message. ok is false for event types that do not
// produce notifications.
func Format(evt *pkgkafka.Event) (msg Message, ok bool, err error) {
	switch evt.EventType {
	case event.TopicOrderCreated:
		var d event.OrderCreatedData
		if err := evt.UnmarshalData(&d); err != nil {
			return Message{}, false, err
		}
		var b strings.Builder
		fmt.Fprintf(&b, "New order #%d from %s\n", d.ID, d.CustomerName)
		for _, it := range d.Items {
			fmt.Fprintf(&b, "- %d x %s (%s)\n", it.Quantity, it.Name, formatPrice(it.UnitPrice))
		}
		fmt.Fprintf(&b, "Total: %s", formatPrice(d.Total))
		if d.Notes != "" {
			fmt.Fprintf(&b, "\nNotes: %s", d.Notes)
		}
		return Message{Subject: fmt.Sprintf("New order #%d", d.ID), Body: b.String()}, true, nil

	case event.TopicOrderStatusChanged:
		var d event.OrderStatusChangedData
		if err := evt.UnmarshalData(&d); err != nil {
			return Message{}, false, err
		}
		return Message{
			Subject: fmt.Sprintf("Order #%d is %s", d.ID, d.NewStatus),
			Body:    fmt.Sprintf("Order #%d for %s changed from %s to %s", d.ID, d.CustomerName, d.OldStatus, d.NewStatus),
		}, true, nil

	case event.TopicMenuCreated, event.TopicMenuUpdated:
		var d event.MenuItemData
		if err := evt.UnmarshalData(&d); err != nil {
			return Message{}, false, err
		}
		subject, verb := "Menu item added", "added to"
		if evt.EventType == event.TopicMenuUpdated {
			subject, verb = "Menu item updated", "updated on"
		}
		availability := "available"
		if !d.Available {
			availability = "not available"
		}
		return Message{
			Subject: subject,
			Body:    fmt.Sprintf("%s was %s the menu at %s (%s)", d.Name, verb, formatPrice(d.Price), availability),
		}, true, nil

	case event.TopicMenuDeleted:
		var d event.MenuItemDeletedData
		if err := evt.UnmarshalData(&d); err != nil {
			return Message{}, false, err
		}
		return Message{
			Subject: "Menu item removed",
			Body:    fmt.Sprintf("%s was removed from the menu", d.Name),
		}, true, nil
	}

	return Message{}, false, nil
}

// formatPrice renders cents as "12.50".
func formatPrice(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
