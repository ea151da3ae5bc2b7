package repository

import "context"

// Repositories groups the repositories sharing one connection or transaction.
type Repositories struct {
	Riders     RiderRepository
	Orders     OrderRepository
	Deliveries DeliveryRepository
	Earnings   EarningRepository
}

// TxManager runs a function against transaction-scoped repositories.
//
// If fn returns an error the transaction is rolled back. A commit whose
// outcome is unknown yields an error wrapping ErrCommitUnknown.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(repos Repositories) error) error
}
