// Package message renders order events into the French texts sent to customers and to the shop admin.
package message

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Skotchmaster/souq/pkg/events"
)

var ErrUnsupported = errors.New("unsupported event")

type Message struct {
	To   string
	Body string
}

var statusTexts = map[string]string{
	"confirmed":  "✅ Votre commande est confirmée et en préparation",
	"preparing":  "👨‍🍳 Nos chefs préparent votre commande avec amour",
	"ready":      "🎉 Votre commande est prête ! Livraison en cours",
	"delivering": "🚚 Votre livreur est en route !",
	"delivered":  "✅ Commande livrée ! Merci et bon appétit ! 🍽️",
	"cancelled":  "❌ Votre commande a été annulée. Contactez-nous pour plus d'infos.",
}

type Renderer struct {
	FrontendURL string
	AdminPhone  string
}

func (r Renderer) trackingLink(orderID string) string {
	return fmt.Sprintf("Suivi: %s/orders/%s", r.FrontendURL, orderID)
}

// Render returns the messages an event produces. Order events without a customer phone produce none.
func (r Renderer) Render(e events.Event) ([]Message, error) {
	switch e.Type {
	case events.OrderCreated:
		if e.Order == nil || e.Order.CustomerPhone == "" {
			return nil, nil
		}
		return []Message{{To: e.Order.CustomerPhone, Body: r.Confirmation(e.Order)}}, nil
	case events.OrderStatusChanged:
		if e.Order == nil || e.Order.CustomerPhone == "" {
			return nil, nil
		}
		status := e.Status
		if status == "" {
			status = e.Order.Status
		}
		return []Message{{To: e.Order.CustomerPhone, Body: r.StatusUpdate(e.Order, status)}}, nil
	case events.LowStock:
		if len(e.Products) == 0 {
			return nil, nil
		}
		return []Message{{To: r.AdminPhone, Body: LowStockAlert(e.Products)}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, e.Type)
	}
}

func (r Renderer) Confirmation(o *events.OrderPayload) string {
	fee := "GRATUITE"
	if !o.DeliveryFee.IsZero() {
		fee = o.DeliveryFee.String() + " DH"
	}

	lines := []string{
		"🎉 Commande confirmée !",
		"",
		"📦 N° " + o.OrderNumber,
		"💰 Total: " + o.Total.String() + " DH",
		"🚚 Livraison: " + fee,
		"📍 " + o.DeliveryAddress,
	}
	if o.DeliveryDate != nil {
		lines = append(lines, "📅 "+o.DeliveryDate.Format("02/01/2006"))
	}
	if o.DeliveryTime != "" {
		lines = append(lines, "⏰ "+o.DeliveryTime)
	}
	lines = append(lines, "", "Merci pour votre confiance ! 🙏", r.trackingLink(o.ID))
	return strings.Join(lines, "\n")
}

func (r Renderer) StatusUpdate(o *events.OrderPayload, status string) string {
	status = strings.ToLower(status)
	text, ok := statusTexts[status]
	if !ok {
		text = "Statut mis à jour"
	}
	lines := []string{"📦 Commande " + o.OrderNumber, text, ""}
	if status == "delivered" {
		lines = append(lines, "N'hésitez pas à nous laisser un avis ! ⭐")
	}
	lines = append(lines, r.trackingLink(o.ID))
	return strings.Join(lines, "\n")
}

func LowStockAlert(products []events.StockPayload) string {
	var b strings.Builder
	b.WriteString("⚠️ ALERTE STOCK FAIBLE\n\nLes produits suivants ont un stock faible :\n")
	for _, p := range products {
		fmt.Fprintf(&b, "• %s (%d restant)\n", p.Name, p.Stock)
	}
	b.WriteString("\nVeuillez réapprovisionner rapidement.")
	return b.String()
}
