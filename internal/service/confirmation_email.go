package service

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"meal-order-backend/internal/client"
	"meal-order-backend/internal/money"
	"meal-order-backend/internal/snapshot"
)

var confirmationHTML = template.Must(template.New("confirmation").Funcs(template.FuncMap{
	"fmtMoney": money.Format,
}).Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
	<h2>Thanks for your order{{ with .Name }}, {{ . }}{{ end }}!</h2>
	<p>Order <strong>{{ .Order.ID }}</strong>{{ with .Order.ServiceDate }} starting {{ . }}{{ end }}{{ with .Order.Session }} ({{ . }}){{ end }}</p>
	<table cellpadding="4">
		{{- range .Order.LineItems }}
		<tr><td>{{ .Name }} x {{ .Quantity }}</td><td align="right">{{ fmtMoney .LineTotal $.Currency }}</td></tr>
		{{- end }}
		{{- range .Order.Promotions }}
		<tr><td>Promotion {{ .Code }}</td><td align="right">-{{ fmtMoney .Amount $.Currency }}</td></tr>
		{{- end }}
		<tr><td><strong>Total</strong></td><td align="right"><strong>{{ fmtMoney .Order.Pricing.Total $.Currency }}</strong></td></tr>
		<tr><td>Includes GST</td><td align="right">{{ fmtMoney .Order.Pricing.GST $.Currency }}</td></tr>
		<tr><td>Paid</td><td align="right">{{ fmtMoney .Order.Pricing.Paid $.Currency }}</td></tr>
		<tr><td>Remaining</td><td align="right">{{ fmtMoney .Order.Pricing.Remaining $.Currency }}</td></tr>
	</table>
	{{- with .Order.Note }}
	<p>Note: {{ . }}</p>
	{{- end }}
</body>
</html>`))

type confirmationView struct {
	Order    snapshot.Order
	Name     string
	Currency string
}

func renderConfirmationEmail(doc *snapshot.Document) (*client.EmailMessage, error) {
	o := doc.Order

	to, name := "", ""
	if o.Delivery != nil {
		to, name = o.Delivery.Email, o.Delivery.FirstName
	}
	if to == "" && o.Customer != nil {
		to, name = o.Customer.Email, o.Customer.FirstName
	}
	if to == "" {
		return nil, ErrNoRecipient
	}

	view := confirmationView{Order: o, Name: name, Currency: o.Pricing.Currency}
	var html bytes.Buffer
	if err := confirmationHTML.Execute(&html, view); err != nil {
		return nil, fmt.Errorf("render confirmation email: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Order %s\n", o.ID)
	for _, li := range o.LineItems {
		fmt.Fprintf(&text, "%s x %d  %s\n", li.Name, li.Quantity, money.Format(li.LineTotal, view.Currency))
	}
	fmt.Fprintf(&text, "Total %s (GST %s)\n", money.Format(o.Pricing.Total, view.Currency), money.Format(o.Pricing.GST, view.Currency))
	fmt.Fprintf(&text, "Paid %s, remaining %s\n", money.Format(o.Pricing.Paid, view.Currency), money.Format(o.Pricing.Remaining, view.Currency))

	return &client.EmailMessage{
		To:      to,
		ToName:  name,
		Subject: fmt.Sprintf("Your order %s is confirmed", o.ID),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
