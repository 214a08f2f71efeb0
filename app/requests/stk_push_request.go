package requests

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"github.com/thedevsaddam/govalidator"

	"spark/app/models/payment"
)

const (
	// CountryCode is the Kenyan dialing prefix without the plus sign
	CountryCode = "254"
	// MinAmount and MaxAmount bound a single STK push in KES
	MinAmount = 100
	MaxAmount = 100000
	// MaxEmailLength caps the optional receipt address
	MaxEmailLength = 255
)

// mobilePrefixes are the digits that follow 254 on Kenyan mobile numbers
var mobilePrefixes = []byte{'7', '1'}

var (
	nonDigits  = regexp.MustCompile(`[^0-9]`)
	emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// STKPushRequest is the raw initiation body
type STKPushRequest struct {
	PhoneNumber string      `json:"phoneNumber"`
	Amount      interface{} `json:"amount"`
	TicketType  string      `json:"ticketType"`
	Email       string      `json:"email"`
}

// ValidatedSTKPush holds provider-ready values
type ValidatedSTKPush struct {
	PhoneNumber string
	Amount      int64
	TicketType  string
	Email       string
}

// stkPushShape is the string subset checked by govalidator
type stkPushShape struct {
	PhoneNumber string `json:"phoneNumber"`
	TicketType  string `json:"ticketType"`
	Email       string `json:"email"`
}

// ValidateSTKPush binds the body and validates it field by field in the order
// phone, amount, ticket type, email. The first failure is returned.
func ValidateSTKPush(c *gin.Context) (*ValidatedSTKPush, error) {
	var req STKPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, &ValidationError{Field: "body", Message: "Invalid request body"}
	}
	return ValidateSTKPushRequest(&req)
}

// ValidateSTKPushRequest validates an already bound body
func ValidateSTKPushRequest(req *STKPushRequest) (*ValidatedSTKPush, error) {
	rules := govalidator.MapData{
		"phoneNumber": []string{"required"},
		"ticketType":  []string{"required"},
		"email":       []string{fmt.Sprintf("max:%d", MaxEmailLength)},
	}
	messages := govalidator.MapData{
		"phoneNumber": []string{"required:Phone number is required"},
		"ticketType":  []string{"required:Ticket type is required"},
		"email":       []string{fmt.Sprintf("max:Email must be less than %d characters", MaxEmailLength)},
	}
	shape := stkPushShape{
		PhoneNumber: req.PhoneNumber,
		TicketType:  req.TicketType,
		Email:       req.Email,
	}
	errs := ValidateStruct(&shape, rules, messages)

	if verr := firstFieldError(errs, "phoneNumber"); verr != nil {
		return nil, verr
	}
	phone, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, &ValidationError{Field: "phoneNumber", Message: err.Error()}
	}

	amount, err := ValidateAmount(req.Amount)
	if err != nil {
		return nil, &ValidationError{Field: "amount", Message: err.Error()}
	}

	if verr := firstFieldError(errs, "ticketType"); verr != nil {
		return nil, verr
	}
	if err := ValidateTicketType(req.TicketType); err != nil {
		return nil, &ValidationError{Field: "ticketType", Message: err.Error()}
	}

	if verr := firstFieldError(errs, "email"); verr != nil {
		return nil, verr
	}
	if err := ValidateEmail(req.Email); err != nil {
		return nil, &ValidationError{Field: "email", Message: err.Error()}
	}

	return &ValidatedSTKPush{
		PhoneNumber: phone,
		Amount:      amount,
		TicketType:  req.TicketType,
		Email:       req.Email,
	}, nil
}

// NormalizePhone converts a Kenyan mobile number into the 2547XXXXXXXX form
// the provider expects
func NormalizePhone(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("Phone number is required")
	}

	// "+254..." loses its plus here along with spaces and dashes
	cleaned := nonDigits.ReplaceAllString(raw, "")

	switch {
	case strings.HasPrefix(cleaned, "0"):
		cleaned = CountryCode + cleaned[1:]
	case !strings.HasPrefix(cleaned, CountryCode):
		cleaned = CountryCode + cleaned
	}

	if len(cleaned) != 12 {
		return "", fmt.Errorf("Phone number must be a valid Kenyan number (e.g., 0712345678 or 254712345678)")
	}

	prefix := cleaned[len(CountryCode)]
	for _, p := range mobilePrefixes {
		if prefix == p {
			return cleaned, nil
		}
	}
	return "", fmt.Errorf("Phone number must be a valid Kenyan mobile number")
}

// ValidateAmount parses raw as a number within [MinAmount, MaxAmount].
// M-Pesa only takes whole shillings, so fractions are rounded rather than rejected.
func ValidateAmount(raw interface{}) (int64, error) {
	if raw == nil {
		return 0, fmt.Errorf("Amount is required")
	}
	if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
		return 0, fmt.Errorf("Amount is required")
	}

	value, err := cast.ToFloat64E(raw)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("Amount must be a valid number")
	}

	if value <= 0 {
		return 0, fmt.Errorf("Amount must be greater than zero")
	}
	if value < MinAmount {
		return 0, fmt.Errorf("Minimum amount is %d KES", MinAmount)
	}
	if value > MaxAmount {
		return 0, fmt.Errorf("Maximum amount is 100,000 KES")
	}

	return int64(math.Round(value)), nil
}

// ValidateTicketType requires an exact match against the ticket list
func ValidateTicketType(ticketType string) error {
	if ticketType == "" {
		return fmt.Errorf("Ticket type is required")
	}
	if !payment.IsValidTicketType(ticketType) {
		return fmt.Errorf("Invalid ticket type. Must be one of: %s", payment.TicketTypeList())
	}
	return nil
}

// ValidateEmail accepts an empty address; otherwise it needs a local@domain.tld shape
func ValidateEmail(email string) error {
	if email == "" {
		return nil
	}
	if !emailShape.MatchString(email) {
		return fmt.Errorf("Invalid email format")
	}
	if utf8.RuneCountInString(email) > MaxEmailLength {
		return fmt.Errorf("Email must be less than %d characters", MaxEmailLength)
	}
	return nil
}
