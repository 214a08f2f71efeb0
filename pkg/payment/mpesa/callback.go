package mpesa

import (
	"spark/pkg/daraja"
	"spark/pkg/payment/types"
)

// Callback metadata item names
const (
	ItemReceiptNumber   = "MpesaReceiptNumber"
	ItemTransactionDate = "TransactionDate"
	ItemPhoneNumber     = "PhoneNumber"
	ItemAmount          = "Amount"
)

// ResultCodeMissing stands in for a result code the callback did not carry
const ResultCodeMissing = -1

// ParseCallback decodes a Daraja callback body into a types.Callback
func ParseCallback(body []byte) (*types.Callback, error) {
	stk, err := daraja.ParseCallback(body)
	if err != nil {
		return nil, err
	}
	return FromSTKCallback(stk), nil
}

// FromSTKCallback flattens the envelope and its metadata items. A missing
// result code becomes ResultCodeMissing so it can never settle as success.
func FromSTKCallback(stk *daraja.STKCallback) *types.Callback {
	cb := &types.Callback{
		MerchantRequestID: stk.MerchantRequestID,
		CheckoutRequestID: stk.CheckoutRequestID,
		ResultCode:        ResultCodeMissing,
		ResultDesc:        stk.ResultDesc,
	}
	if stk.ResultCode != nil {
		cb.ResultCode = *stk.ResultCode
	}
	if v, ok := stk.Metadata(ItemReceiptNumber); ok {
		cb.ReceiptNumber = v.String()
	}
	if v, ok := stk.Metadata(ItemTransactionDate); ok {
		cb.TransactionDate = v.String()
	}
	if v, ok := stk.Metadata(ItemPhoneNumber); ok {
		cb.PhoneNumber = v.String()
	}
	if v, ok := stk.Metadata(ItemAmount); ok {
		if n, ok := v.Int64(); ok {
			cb.Amount = n
		}
	}
	return cb
}
