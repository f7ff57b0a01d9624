package domain

import "time"

// User is a marketplace participant. Reserved holds the sum of funds locked
// by leading bids; only Balance minus Reserved can back a new commitment.
type User struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	FullName        string    `json:"fullName"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	Address         string    `json:"address"`
	Avatar          string    `json:"avatar"`
	Balance         Money     `json:"balance"`
	Reserved        Money     `json:"reserved"`
	ReputationScore int       `json:"reputationScore"`
	SuccessfulDeals int       `json:"successfulDeals"`
	TotalRatings    int       `json:"totalRatings"`
	IsAdmin         bool      `json:"isAdmin,omitempty"`
	LastNickChange  time.Time `json:"lastNickChange"`
	Version         int64     `json:"version"`
}

// Available returns the balance not locked by bids.
func (u User) Available() Money {
	return u.Balance - u.Reserved
}
