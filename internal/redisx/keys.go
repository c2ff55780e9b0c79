package redisx

import "time"

const (
	// Cache of the serialized order returned by GET /transactions/{id}:
	// tx:{order_id} -> JSON body. Refreshed after every settlement.
	KeyTransaction = "tx:%s"
)

var (
	TTLTransactionCache = 5 * time.Minute
)
