package redisx

import "time"

const (
	// Cached order snapshot for GETs: order_status:{order_id}
	KeyOrderStatus = "order_status:%s"

	// Dedup processed payment callbacks/events: dedup:{service}:{id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
