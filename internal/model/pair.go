package model

import "strings"

// BaseAsset returns the traded asset of a Bitso book, e.g. "eth" for "eth_mxn".
func BaseAsset(pair string) string {
	base, _, _ := strings.Cut(strings.ToLower(pair), "_")
	return base
}

// QuoteAsset returns the pricing currency of a book, e.g. "mxn" for "eth_mxn".
// Books without an underscore have no quote asset.
func QuoteAsset(pair string) string {
	_, quote, _ := strings.Cut(strings.ToLower(pair), "_")
	return quote
}
