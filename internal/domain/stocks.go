package domain

import "time"

// ClosingPrice is one daily close in a ticker's price history.
type ClosingPrice struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// CompanyProfile is background information about a listed company.
type CompanyProfile struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
	Summary  string `json:"summary"`
}
