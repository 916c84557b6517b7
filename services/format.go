package services

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// NumberFormatter renders quantities and amounts for one locale. Only
// number formatting follows the locale; labels stay as they are.
type NumberFormatter struct {
	tag     language.Tag
	printer *message.Printer
}

// NewNumberFormatter parses a BCP 47 tag such as "en", "de-DE" or "fr".
// Unparseable tags fall back to fallback, then to English.
func NewNumberFormatter(locale, fallback string) *NumberFormatter {
	tag, err := language.Parse(locale)
	if err != nil || locale == "" {
		tag, err = language.Parse(fallback)
		if err != nil || fallback == "" {
			tag = language.English
		}
	}
	return &NumberFormatter{tag: tag, printer: message.NewPrinter(tag)}
}

// Locale returns the resolved tag.
func (f *NumberFormatter) Locale() string { return f.tag.String() }

// Quantity formats whole numbers without decimals and fractional values with
// two decimals, grouped per locale.
func (f *NumberFormatter) Quantity(v float64) string {
	if v == math.Trunc(v) {
		return f.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(0)))
	}
	return f.printer.Sprint(number.Decimal(v,
		number.MinFractionDigits(2),
		number.MaxFractionDigits(2),
	))
}

// Amount always shows two decimals.
func (f *NumberFormatter) Amount(v float64) string {
	return f.printer.Sprint(number.Decimal(v,
		number.MinFractionDigits(2),
		number.MaxFractionDigits(2),
	))
}
