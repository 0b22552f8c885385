package model

import (
	"time"
)

type Tenant struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	TokenHash       string    `db:"token_hash" json:"-"`
	RateLimitPerMin int       `db:"rate_limit_per_min" json:"rateLimitPerMin"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}
