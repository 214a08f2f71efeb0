// Package payment holds the M-Pesa payment handlers
package payment

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"spark/app/requests"
	"spark/pkg/logger"
	"spark/pkg/payment/mpesa"
	"spark/pkg/payment/types"
	"spark/pkg/response"
)

// MaxCallbackBody caps the callback body Daraja may send us
const MaxCallbackBody = 64 << 10

type PaymentController struct {
	paymentService types.Service
	verifier       mpesa.SourceVerifier
}

// NewPaymentController creates the payment controller
func NewPaymentController(service types.Service, verifier mpesa.SourceVerifier) *PaymentController {
	return &PaymentController{
		paymentService: service,
		verifier:       verifier,
	}
}

// STKPush starts a payment by sending the PIN prompt to the customer's phone
func (pc *PaymentController) STKPush(c *gin.Context) {
	req, err := requests.ValidateSTKPush(c)
	if err != nil {
		response.Abort400(c, err.Error())
		return
	}

	result, err := pc.paymentService.CreatePayment(c.Request.Context(), &types.Request{
		PhoneNumber: req.PhoneNumber,
		Amount:      req.Amount,
		TicketType:  req.TicketType,
		Email:       req.Email,
	})
	if err != nil {
		initiationError(c, err)
		return
	}

	response.JSON(c, gin.H{
		"success":           true,
		"checkoutRequestId": result.CheckoutRequestID,
		"message":           result.CustomerMessage,
	})
}

func initiationError(c *gin.Context, err error) {
	var limited *types.RateLimitError
	var rejected *types.UpstreamRejection

	switch {
	case errors.As(err, &limited):
		response.TooManyRequests(c, limited.RetryAfter, limited.Error())
	case errors.As(err, &rejected):
		response.Error(c, http.StatusBadRequest, "Failed to initiate payment", rejected.Description)
	case errors.Is(err, types.ErrConfiguration):
		response.Abort500(c, "M-Pesa configuration incomplete")
	case errors.Is(err, types.ErrUpstreamAuth):
		response.Abort502(c, "Failed to get M-Pesa access token")
	case errors.Is(err, types.ErrUpstreamUnavailable):
		response.Abort502(c, "Failed to initiate payment")
	case errors.Is(err, types.ErrLedgerWrite):
		response.Abort500(c, "Failed to record payment")
	case errors.Is(err, types.ErrLedgerRead):
		response.Abort500(c, "Failed to check payment history")
	default:
		logger.Error("Payment", zap.String("stage", "initiate"), zap.Error(err))
		response.Abort500(c)
	}
}

// Callback receives the STK push result from Daraja. Anything other than an
// unknown checkout id or a forged origin is acknowledged with 200 so Daraja
// does not retry.
func (pc *PaymentController) Callback(c *gin.Context) {
	if err := pc.verifier.Verify(c.ClientIP()); err != nil {
		logger.Warn("Payment",
			zap.String("security", "callback from unexpected origin"),
			zap.String("ip", c.ClientIP()),
		)
		response.Acknowledge(c, http.StatusForbidden, 1, "Unauthorized")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxCallbackBody))
	if err != nil {
		logger.WarnString("Payment", "callback", "failed to read body: "+err.Error())
		response.Acknowledge(c, http.StatusOK, 1, "Processing error")
		return
	}

	cb, err := mpesa.ParseCallback(body)
	if err != nil {
		logger.WarnString("Payment", "callback", err.Error())
		response.Acknowledge(c, http.StatusOK, 1, "Processing error")
		return
	}

	result, err := pc.paymentService.HandleNotify(c.Request.Context(), cb)
	switch {
	case errors.Is(err, types.ErrUnknownTransaction):
		response.Acknowledge(c, http.StatusNotFound, 1, "Unknown transaction")
	case err != nil:
		response.Acknowledge(c, http.StatusOK, 1, "Processing error")
	case result.AlreadyProcessed:
		response.Acknowledge(c, http.StatusOK, 0, "Already processed")
	default:
		response.Acknowledge(c, http.StatusOK, 0, "Accepted")
	}
}

// Status answers the frontend poller with the checkout id in the body
func (pc *PaymentController) Status(c *gin.Context) {
	var req struct {
		CheckoutRequestID string `json:"checkoutRequestId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Abort400(c, "Invalid request body")
		return
	}
	pc.status(c, req.CheckoutRequestID)
}

// StatusByParam answers the frontend poller with the checkout id in the path
func (pc *PaymentController) StatusByParam(c *gin.Context) {
	pc.status(c, c.Param("checkoutRequestId"))
}

func (pc *PaymentController) status(c *gin.Context, checkoutRequestID string) {
	if checkoutRequestID == "" {
		response.Abort400(c, "Checkout request ID is required")
		return
	}

	status, err := pc.paymentService.QueryStatus(c.Request.Context(), checkoutRequestID)
	if errors.Is(err, types.ErrPaymentNotFound) {
		response.Abort404(c, "Payment not found")
		return
	}
	if err != nil {
		response.Abort500(c, "Failed to check payment status")
		return
	}

	response.JSON(c, gin.H{"status": status})
}
