package utils

import (
	"crypto/rand"
	"encoding/base64"
	"strconv"
	"strings"
)

// GenerateRandomString generates a random string of the specified length
func GenerateRandomString(length int) (string, error) {
	b := make([]byte, length)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b)[:length], nil
}

// FormatTicketNumber left-pads a ticket with zeros to the digit count of totalTickets
func FormatTicketNumber(ticket, totalTickets int) string {
	digits := len(strconv.Itoa(totalTickets))
	s := strconv.Itoa(ticket)
	if len(s) >= digits {
		return s
	}
	return strings.Repeat("0", digits-len(s)) + s
}

// FormatTicketNumbers formats and joins tickets with ", "
func FormatTicketNumbers(tickets []int, totalTickets int) string {
	parts := make([]string, len(tickets))
	for i, t := range tickets {
		parts[i] = FormatTicketNumber(t, totalTickets)
	}
	return strings.Join(parts, ", ")
}

// FormatPrice renders an amount in minor units with dot thousands separators, e.g. $12.500
func FormatPrice(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := strconv.FormatInt(amount, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteByte('.')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
