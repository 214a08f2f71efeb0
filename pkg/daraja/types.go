package daraja

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Config holds the Daraja credentials and endpoints
type Config struct {
	BaseURL          string
	ConsumerKey      string
	ConsumerSecret   string
	ShortCode        string
	Passkey          string
	CallbackURL      string
	AccountReference string
	Timeout          time.Duration
}

// Missing lists the settings that must be set before a push can be sent
func (c Config) Missing() []string {
	var missing []string
	if c.ConsumerKey == "" {
		missing = append(missing, "consumer_key")
	}
	if c.ConsumerSecret == "" {
		missing = append(missing, "consumer_secret")
	}
	if c.Passkey == "" {
		missing = append(missing, "passkey")
	}
	if c.CallbackURL == "" {
		missing = append(missing, "callback_url")
	}
	if c.ShortCode == "" {
		missing = append(missing, "shortcode")
	}
	return missing
}

// TokenResponse is the OAuth generate response
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// PushRequest is what the caller supplies for one STK push
type PushRequest struct {
	PhoneNumber string
	Amount      int64
	TicketType  string
}

// STKPushRequest is the processrequest body
type STKPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPushResponse is the synchronous acknowledgement of a push
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// ErrorResponse is the body Daraja returns on 4xx and 5xx
type ErrorResponse struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// CallbackEnvelope is the body Daraja posts to the callback URL
type CallbackEnvelope struct {
	Body struct {
		STKCallback *STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// STKCallback is the settlement notice inside the envelope
type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        *int              `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

// CallbackMetadata carries the confirmed transaction details on success
type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

// MetadataItem is one Name/Value pair
type MetadataItem struct {
	Name  string    `json:"Name"`
	Value ItemValue `json:"Value,omitempty"`
}

// ItemValue keeps the text of a metadata value. Daraja sends some values as
// numbers and some as strings depending on the field and environment.
type ItemValue string

// UnmarshalJSON accepts a JSON string, number or null
func (v *ItemValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*v = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = ItemValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = ItemValue(n.String())
	return nil
}

// String returns the raw text
func (v ItemValue) String() string {
	return string(v)
}

// Int64 parses the value as a whole number, rounding decimals such as "1.00"
func (v ItemValue) Int64() (int64, bool) {
	s := strings.TrimSpace(string(v))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if f < 0 {
		return int64(f - 0.5), true
	}
	return int64(f + 0.5), true
}

// Metadata returns the value of the named item
func (c *STKCallback) Metadata(name string) (ItemValue, bool) {
	if c.CallbackMetadata == nil {
		return "", false
	}
	for _, item := range c.CallbackMetadata.Item {
		if item.Name == name {
			return item.Value, true
		}
	}
	return "", false
}
