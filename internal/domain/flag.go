package domain

import "time"

// RedeemedFlag records that the player has successfully claimed a catalog
// entry. For a given player the set of tokens contains no duplicates;
// redemption is idempotent.
type RedeemedFlag struct {
	Token         string    `json:"flag_hash"`
	Points        int       `json:"points"`
	Vulnerability string    `json:"vulnerability_type"`
	CompletedAt   time.Time `json:"completed_at"`
}
