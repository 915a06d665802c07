// Package currencies holds the read-only currency metadata directory. It is
// an explicitly constructed lookup table injected where needed, not an
// ambient singleton.
package currencies

import "github.com/LouisHart1808/Plutus/internal/models"

// Info is display metadata for one currency.
type Info struct {
	Code  models.CurrencyCode `json:"code"`
	Name  string              `json:"name"`
	Glyph string              `json:"glyph"`
}

// Directory is an immutable code-to-metadata table.
type Directory struct {
	ordered []Info
	byCode  map[models.CurrencyCode]Info
}

// NewDirectory builds the default directory of currencies the dashboard can
// track.
func NewDirectory() *Directory {
	entries := []Info{
		{Code: "SGD", Name: "Singapore Dollar", Glyph: "S$"},
		{Code: "USD", Name: "US Dollar", Glyph: "$"},
		{Code: "EUR", Name: "Euro", Glyph: "€"},
		{Code: "GBP", Name: "British Pound", Glyph: "£"},
		{Code: "JPY", Name: "Japanese Yen", Glyph: "¥"},
		{Code: "MYR", Name: "Malaysian Ringgit", Glyph: "RM"},
		{Code: "AUD", Name: "Australian Dollar", Glyph: "A$"},
		{Code: "CAD", Name: "Canadian Dollar", Glyph: "C$"},
		{Code: "CHF", Name: "Swiss Franc", Glyph: "CHF"},
		{Code: "CNY", Name: "Chinese Renminbi", Glyph: "¥"},
		{Code: "HKD", Name: "Hong Kong Dollar", Glyph: "HK$"},
		{Code: "INR", Name: "Indian Rupee", Glyph: "₹"},
		{Code: "IDR", Name: "Indonesian Rupiah", Glyph: "Rp"},
		{Code: "KRW", Name: "South Korean Won", Glyph: "₩"},
		{Code: "NZD", Name: "New Zealand Dollar", Glyph: "NZ$"},
		{Code: "PHP", Name: "Philippine Peso", Glyph: "₱"},
		{Code: "THB", Name: "Thai Baht", Glyph: "฿"},
		{Code: "TRY", Name: "Turkish Lira", Glyph: "₺"},
		{Code: "ZAR", Name: "South African Rand", Glyph: "R"},
		{Code: "SEK", Name: "Swedish Krona", Glyph: "kr"},
		{Code: "NOK", Name: "Norwegian Krone", Glyph: "kr"},
		{Code: "DKK", Name: "Danish Krone", Glyph: "kr"},
		{Code: "PLN", Name: "Polish Zloty", Glyph: "zł"},
		{Code: "BRL", Name: "Brazilian Real", Glyph: "R$"},
		{Code: "MXN", Name: "Mexican Peso", Glyph: "Mex$"},
	}
	return NewDirectoryWith(entries)
}

// NewDirectoryWith builds a directory from an explicit entry list, preserving
// order and normalizing codes.
func NewDirectoryWith(entries []Info) *Directory {
	directory := &Directory{
		ordered: make([]Info, 0, len(entries)),
		byCode:  make(map[models.CurrencyCode]Info, len(entries)),
	}
	for _, entry := range entries {
		entry.Code = models.NormalizeCode(string(entry.Code))
		if _, exists := directory.byCode[entry.Code]; exists {
			continue
		}
		directory.byCode[entry.Code] = entry
		directory.ordered = append(directory.ordered, entry)
	}
	return directory
}

// Lookup returns metadata for a code, normalizing case first.
func (d *Directory) Lookup(code models.CurrencyCode) (Info, bool) {
	info, ok := d.byCode[models.NormalizeCode(string(code))]
	return info, ok
}

// Known reports whether a code is in the directory.
func (d *Directory) Known(code models.CurrencyCode) bool {
	_, ok := d.Lookup(code)
	return ok
}

// All returns the entries in display order. The returned slice is a copy.
func (d *Directory) All() []Info {
	return append([]Info(nil), d.ordered...)
}
