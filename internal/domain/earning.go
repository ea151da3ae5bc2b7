package domain

import "time"

// PaymentStatus represents the payout stage of an earning.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusPaid       PaymentStatus = "PAID"
	PaymentStatusFailed     PaymentStatus = "FAILED"
)

// PayoutMethod represents how a rider is paid out.
type PayoutMethod string

const (
	PayoutMethodBankTransfer PayoutMethod = "BANK_TRANSFER"
	PayoutMethodMobileMoney  PayoutMethod = "MOBILE_MONEY"
	PayoutMethodWallet       PayoutMethod = "WALLET"
)

// Valid reports whether m is a supported payout method.
func (m PayoutMethod) Valid() bool {
	switch m {
	case PayoutMethodBankTransfer, PayoutMethodMobileMoney, PayoutMethodWallet:
		return true
	}
	return false
}

// Earning is a rider's credit for one completed delivery.
type Earning struct {
	ID              string        `json:"id"`
	DeliveryID      string        `json:"delivery_id"`
	RiderID         string        `json:"rider_id"`
	Amount          float64       `json:"amount"`
	AccruedOn       time.Time     `json:"accrued_on"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PayoutDate      *time.Time    `json:"payout_date"`
	PayoutMethod    PayoutMethod  `json:"payout_method"`
	PayoutReference string        `json:"payout_reference"`
}

// EarningsSummary aggregates earnings over a period.
type EarningsSummary struct {
	Total   float64 `json:"total"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// EarningsBucket is a summary for one time bucket.
type EarningsBucket struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	EarningsSummary
}

// Payout describes a batch of earnings moved to PROCESSING.
type Payout struct {
	Reference   string       `json:"reference"`
	RiderID     string       `json:"rider_id"`
	Method      PayoutMethod `json:"method"`
	Count       int          `json:"count"`
	Total       float64      `json:"total"`
	RequestedAt time.Time    `json:"requested_at"`
}
