package migrations

import (
	"spark/app/models/payment"
)

// RegisterTables lists the models to migrate
func RegisterTables() []interface{} {
	return []interface{}{
		&payment.Payment{},
	}
}
