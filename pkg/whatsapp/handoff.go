package whatsapp

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const baseURL = "https://wa.me/"

// Details is the purchase information pre-filled into the chat message
type Details struct {
	RaffleTitle string
	FirstName   string
	LastName    string
	Phone       string
	Email       string
	// Tickets are already formatted for display
	Tickets  []string
	DrawDate time.Time
}

// Handoff tells the client where to send the buyer after checkout
type Handoff struct {
	URL          string `json:"url"`
	DelaySeconds int    `json:"delaySeconds"`
	// FallbackSameTab asks the client to navigate in place when a new tab is blocked
	FallbackSameTab bool `json:"fallbackSameTab"`
}

// Builder creates deep links to the business WhatsApp number
type Builder struct {
	number string
	delay  time.Duration
}

// NewBuilder creates a Builder. Non-digit characters in number are dropped.
func NewBuilder(number string, delay time.Duration) *Builder {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	return &Builder{number: digits, delay: delay}
}

// Enabled reports whether a business number is configured
func (b *Builder) Enabled() bool {
	return b != nil && b.number != ""
}

// Message renders the chat text for a purchase
func (b *Builder) Message(d Details) string {
	var sb strings.Builder
	sb.WriteString("¡Hola!\n")
	fmt.Fprintf(&sb, "He comprado tickets para el sorteo: %s\n", d.RaffleTitle)
	sb.WriteString("Mis datos:\n")
	fmt.Fprintf(&sb, "• Nombre: %s %s\n", d.FirstName, d.LastName)
	fmt.Fprintf(&sb, "• Celular: %s\n", d.Phone)
	fmt.Fprintf(&sb, "• Email: %s\n", d.Email)
	fmt.Fprintf(&sb, "Mis números registrados: %s\n", strings.Join(d.Tickets, ", "))
	fmt.Fprintf(&sb, "Fecha del sorteo: %s", d.DrawDate.Format("02/01/2006"))
	return sb.String()
}

// Build returns the handoff for a purchase
func (b *Builder) Build(d Details) Handoff {
	q := url.Values{}
	q.Set("text", b.Message(d))
	return Handoff{
		URL:             baseURL + b.number + "?" + q.Encode(),
		DelaySeconds:    int(b.delay / time.Second),
		FallbackSameTab: true,
	}
}
