package receipt

import (
	"encoding/json"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"spark/pkg/payment/types"
)

// QRSize is the edge length of the entry QR code in pixels
const QRSize = 256

// ticketPayload is what gate staff read from the QR code
type ticketPayload struct {
	Receipt string `json:"receipt"`
	Ticket  string `json:"ticket"`
	Phone   string `json:"phone"`
	Date    string `json:"date"`
}

// TicketQRData returns the JSON encoded in the entry QR code
func TicketQRData(r *types.Receipt) (string, error) {
	data, err := json.Marshal(ticketPayload{
		Receipt: r.MpesaReceipt,
		Ticket:  r.TicketType,
		Phone:   r.PhoneNumber,
		Date:    r.TransactionDate,
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// TicketQR renders the entry QR code as PNG
func TicketQR(r *types.Receipt) ([]byte, error) {
	data, err := TicketQRData(r)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(data, qrcode.Medium, QRSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
