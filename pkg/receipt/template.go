package receipt

import (
	"bytes"
	"html/template"
	"strconv"
	"time"

	"spark/pkg/app"
	"spark/pkg/payment/types"
)

// QRContentID is the inline attachment name the email body refers to
const QRContentID = "ticket-qr.png"

const transactionDateLayout = "20060102150405"

var ticketTemplate = template.Must(template.New("ticket").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Your Adventist Singles Spark Ticket</title>
</head>
<body style="margin:0;padding:0;background-color:#f4f4f5;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,Arial,sans-serif;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" border="0">
    <tr><td style="padding:40px 20px;">
      <table role="presentation" width="600" cellspacing="0" cellpadding="0" border="0" style="margin:0 auto;background-color:#ffffff;border-radius:16px;">
        <tr><td style="background:#003366;padding:40px;text-align:center;">
          <h1 style="margin:0;color:#FFD700;font-size:28px;">Adventist Singles Spark</h1>
          <p style="margin:10px 0 0;color:#ffffff;">Your Ticket Confirmation</p>
        </td></tr>
        <tr><td style="padding:30px 40px 10px;text-align:center;">
          <span style="background-color:#dcfce7;color:#166534;padding:8px 20px;border-radius:50px;font-weight:600;">Payment Successful</span>
        </td></tr>
        <tr><td style="padding:20px 40px;">
          <table role="presentation" width="100%" cellspacing="0" cellpadding="8" border="0" style="background-color:#f8fafc;border-radius:12px;">
            <tr><td style="color:#64748b;">Ticket Type</td><td style="text-align:right;font-weight:600;">{{.TicketType}}</td></tr>
            <tr><td style="color:#64748b;">Amount Paid</td><td style="text-align:right;font-weight:600;color:#166534;">{{.Amount}}</td></tr>
            <tr><td style="color:#64748b;">M-Pesa Receipt</td><td style="text-align:right;font-weight:600;">{{.MpesaReceipt}}</td></tr>
            <tr><td style="color:#64748b;">Transaction Date</td><td style="text-align:right;font-weight:600;">{{.TransactionDate}}</td></tr>
          </table>
        </td></tr>
        <tr><td style="padding:20px 40px;text-align:center;">
          <p style="margin:0 0 16px;color:#003366;font-weight:600;">Your Entry QR Code</p>
          <img src="cid:{{.QRContentID}}" alt="Ticket QR Code" width="200" height="200">
          <p style="margin:16px 0 0;color:#64748b;font-size:12px;">Present this QR code at the event entrance</p>
        </td></tr>
        <tr><td style="padding:20px 40px;">
          <ul style="color:#78350f;font-size:14px;line-height:1.6;">
            <li>Please arrive at least 15 minutes before the event starts</li>
            <li>Bring a valid ID for verification</li>
            <li>Screenshot or print this ticket for entry</li>
            <li>Dress code: Smart Casual</li>
          </ul>
        </td></tr>
        <tr><td style="background-color:#f8fafc;padding:30px 40px;text-align:center;color:#94a3b8;font-size:12px;">
          Questions? Contact us at info@adventistspark.com<br>
          &copy; {{.Year}} Adventist Singles Spark. All rights reserved.
        </td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>
`))

type ticketView struct {
	TicketType      string
	Amount          string
	MpesaReceipt    string
	TransactionDate string
	QRContentID     string
	Year            int
}

// RenderHTML renders the ticket email body
func RenderHTML(r *types.Receipt, now time.Time) (string, error) {
	view := ticketView{
		TicketType:      r.TicketType,
		Amount:          FormatAmount(r.Amount),
		MpesaReceipt:    r.MpesaReceipt,
		TransactionDate: FormatTransactionDate(r.TransactionDate, now),
		QRContentID:     QRContentID,
		Year:            app.TimeIn(now).Year(),
	}

	var buf bytes.Buffer
	if err := ticketTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Subject is the ticket email subject line
func Subject(r *types.Receipt) string {
	return "Your " + r.TicketType + " Ticket - Adventist Singles Spark"
}

// FormatAmount renders 1500 as "KES 1,500"
func FormatAmount(amount int64) string {
	s := strconv.FormatInt(amount, 10)
	neg := false
	if amount < 0 {
		neg = true
		s = s[1:]
	}
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "KES -" + string(out)
	}
	return "KES " + string(out)
}

// FormatTransactionDate renders a Daraja YYYYMMDDHHmmss date, falling back to now
func FormatTransactionDate(raw string, now time.Time) string {
	const layout = "Monday, 2 January 2006 at 15:04"

	loc := app.TimeIn(now).Location()
	if t, err := time.ParseInLocation(transactionDateLayout, raw, loc); err == nil {
		return t.Format(layout)
	}
	return app.TimeIn(now).Format(layout)
}
