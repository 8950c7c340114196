package models

// Asset represents a tracked ticker
type Asset struct {
	ID          int    `json:"asset_id"`
	Ticker      string `json:"ticker"`
	CompanyName string `json:"company_name,omitempty"`
}
