package services

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/ArowuTest/jraffle-backend/internal/models"
	"github.com/ArowuTest/jraffle-backend/internal/utils"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html lang="es">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Confirmación de Compra - {{.Company}}</title>
  <style>
    body { font-family: 'Segoe UI', Arial, sans-serif; line-height: 1.6; color: #333; background-color: #f8f9fa; margin: 0; }
    .wrapper { max-width: 600px; margin: 0 auto; padding: 20px; }
    .container { background: #fff; border-radius: 16px; overflow: hidden; }
    .header { background: linear-gradient(135deg, #f97316 0%, #ef4444 100%); color: #fff; padding: 40px 30px; text-align: center; }
    .content { padding: 40px; }
    .ticket-box { background: #fef3c7; padding: 30px; border-radius: 16px; text-align: center; border: 3px solid #f59e0b; }
    .ticket { display: inline-block; background: #f97316; color: #fff; padding: 12px 18px; margin: 6px; border-radius: 30px; font-weight: 700; }
    .premium { background: #7c3aed; }
    table { width: 100%; border-collapse: collapse; margin: 25px 0; }
    th, td { padding: 14px; text-align: left; border-bottom: 1px solid #e5e7eb; }
    .amount { color: #059669; font-weight: 700; }
    .description { margin: 30px 0; color: #4b5563; }
    .footer { background: #f1f3f5; padding: 30px; text-align: center; color: #6b7280; }
  </style>
</head>
<body>
  <div class="wrapper">
    <div class="container">
      <div class="header">
        <h1>¡Compra Confirmada!</h1>
        <p>Gracias por participar en {{.Company}}</p>
      </div>
      <div class="content">
        <h2>¡Hola {{.Name}}!</h2>
        <p>Tu compra ha sido procesada exitosamente. ¡Ya estás participando en el sorteo!</p>
        <div class="ticket-box">
          <h3>Tus Números de la Suerte</h3>
          {{range .Tickets}}<span class="ticket{{if .Premium}} premium{{end}}">{{.Number}}</span>{{end}}
          <p><strong>¡IMPORTANTE!</strong> Guarda estos números. Son tu comprobante oficial de participación en el sorteo.</p>
        </div>
        <h3>Detalles de tu Compra</h3>
        <table>
          <tr><th>Sorteo</th><td><strong>{{.RaffleTitle}}</strong></td></tr>
          <tr><th>Cantidad de Boletos</th><td>{{.TicketCount}} boleto{{if gt .TicketCount 1}}s{{end}}</td></tr>
          <tr><th>Precio por Boleto</th><td>{{.UnitPrice}}</td></tr>
          <tr><th>Total Pagado</th><td class="amount">{{.Total}}</td></tr>
          <tr><th>Método de Pago</th><td>{{.PaymentMethod}}</td></tr>
          <tr><th>Fecha del Sorteo</th><td><strong>{{.DrawDate}}</strong></td></tr>
        </table>
        {{if .Description}}<div class="description">{{.Description}}</div>{{end}}
        <p>Te contactaremos por WhatsApp si resultas ganador. Mantén este correo como prueba de participación.</p>
      </div>
      <div class="footer">
        <p><strong>{{.Company}}</strong></p>
        <p>Este correo fue enviado automáticamente, por favor no responder.</p>
      </div>
    </div>
  </div>
</body>
</html>`))

// CompanyName appears in confirmation emails
const CompanyName = "JRaffle Company"

type emailTicket struct {
	Number  string
	Premium bool
}

type confirmationData struct {
	Company       string
	Name          string
	Tickets       []emailTicket
	RaffleTitle   string
	TicketCount   int
	UnitPrice     string
	Total         string
	PaymentMethod string
	DrawDate      string
	Description   template.HTML
}

// RenderConfirmationEmail builds the subject and HTML body sent to a buyer
func RenderConfirmationEmail(raffle *models.Raffle, purchase *models.Purchase) (string, string, error) {
	tickets := make([]emailTicket, len(purchase.TicketNumbers))
	for i, n := range purchase.TicketNumbers {
		tickets[i] = emailTicket{
			Number:  utils.FormatTicketNumber(n, raffle.TotalTickets),
			Premium: raffle.IsPremiumWin(n),
		}
	}

	var desc bytes.Buffer
	if err := markdown.Convert([]byte(raffle.Description), &desc); err != nil {
		return "", "", fmt.Errorf("render description: %w", err)
	}

	count := len(purchase.TicketNumbers)
	data := confirmationData{
		Company:       CompanyName,
		Name:          purchase.FirstName + " " + purchase.LastName,
		Tickets:       tickets,
		RaffleTitle:   raffle.Title,
		TicketCount:   count,
		UnitPrice:     utils.FormatPrice(raffle.PricePerTicket),
		Total:         utils.FormatPrice(raffle.PricePerTicket * int64(count)),
		PaymentMethod: purchase.PaymentMethod,
		DrawDate:      raffle.DrawDate.Format("02/01/2006"),
		// goldmark drops raw HTML unless WithUnsafe is set
		Description: template.HTML(desc.String()),
	}

	var body bytes.Buffer
	if err := confirmationTemplate.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("render confirmation email: %w", err)
	}

	subject := fmt.Sprintf("🎉 ¡Compra Confirmada! Boletos: %s - %s",
		utils.FormatTicketNumbers(purchase.TicketNumbers, raffle.TotalTickets), raffle.Title)
	return subject, body.String(), nil
}
