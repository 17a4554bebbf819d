package domain

import "fmt"

// ValidateShape checks the request is well-formed: this is the ingress
// 400-class check, distinct from the processor's business-rule 422-class
// checks (account status, balance, currency match) which require a
// database round trip and so happen inside the transaction.
func (r *TransferRequest) ValidateShape() error {
	if r.FromAccountID == "" || r.ToAccountID == "" {
		return fmt.Errorf("ValidateShape: %w: fromAccountId/toAccountId required", ErrInvalidTransferRequest)
	}
	if r.IdempotencyKey == "" {
		return fmt.Errorf("ValidateShape: %w: idempotencyKey required", ErrInvalidTransferRequest)
	}
	if r.TransactionID == "" {
		return fmt.Errorf("ValidateShape: %w: transactionId required", ErrInvalidTransferRequest)
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("ValidateShape: %w", ErrInvalidAmount)
	}
	if len(r.Currency) != 3 {
		return fmt.Errorf("ValidateShape: %w: currency must be a 3-letter tag", ErrInvalidTransferRequest)
	}
	switch r.Type {
	case TransactionTypePayment, TransactionTypeTransfer, TransactionTypeRefund, TransactionTypeWithdrawal:
	default:
		return fmt.Errorf("ValidateShape: %w: unknown transaction type %q", ErrInvalidTransferRequest, r.Type)
	}
	return nil
}
