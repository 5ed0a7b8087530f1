package payments

// declineMessages maps processor decline codes to the copy shown to
// shoppers. Anything unmapped falls through to the generic message.
var declineMessages = map[string]string{
	"card_declined":        "Your card was declined. Please try a different payment method.",
	"expired_card":         "Your card has expired. Please use a different card.",
	"incorrect_cvc":        "The security code is incorrect. Please check and try again.",
	"incorrect_number":     "The card number is incorrect. Please check and try again.",
	"invalid_expiry_month": "The expiration date is invalid. Please check and try again.",
	"invalid_expiry_year":  "The expiration date is invalid. Please check and try again.",
	"insufficient_funds":   "Your card has insufficient funds. Please use a different payment method.",
	"processing_error":     "An error occurred processing your card. Please try again.",
}

const genericDeclineMessage = "Payment failed. Please try again."

// DeclineMessage resolves a shopper-facing message for a decline code.
func DeclineMessage(code, fallback string) string {
	if msg, ok := declineMessages[code]; ok {
		return msg
	}
	if fallback != "" {
		return fallback
	}
	return genericDeclineMessage
}
