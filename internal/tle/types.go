package tle

// Element is the TLE data the provider returned for one catalog ID.
type Element struct {
	CatalogID int64
	Name      string
	// Lines holds the element lines in provider order. It is empty when
	// the provider has no data for the object.
	Lines []string
}

// response is the provider's tle/{id} envelope.
type response struct {
	Info  *satInfo `json:"info"`
	TLE   *string  `json:"tle"`
	Error string   `json:"error"`
}

type satInfo struct {
	SatID             int64  `json:"satid"`
	SatName           string `json:"satname"`
	TransactionsCount int    `json:"transactionscount"`
}
