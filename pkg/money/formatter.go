// Package money renders integer minor-unit amounts as locale-formatted
// currency strings.
package money

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/angelmondragon/cartline-backend/pkg/config"
)

// Formatter renders an amount expressed in minor currency units.
type Formatter interface {
	Format(minor int64) string
}

// FormatterFunc adapts a plain function to Formatter.
type FormatterFunc func(minor int64) string

func (f FormatterFunc) Format(minor int64) string {
	return f(minor)
}

// LocaleFormatter groups digits per locale and prefixes the currency symbol,
// using the ISO currency's standard number of fraction digits.
type LocaleFormatter struct {
	unit    currency.Unit
	symbol  string
	scale   int32
	printer *message.Printer
}

// NewLocaleFormatter builds a formatter for the ISO currency code and BCP 47 locale.
// An empty symbol falls back to the ISO code.
func NewLocaleFormatter(code, symbol, locale string) (*LocaleFormatter, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("parse currency %q: %w", code, err)
	}
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	scale, _ := currency.Standard.Rounding(unit)

	if strings.TrimSpace(symbol) == "" {
		symbol = unit.String()
	}

	return &LocaleFormatter{
		unit:    unit,
		symbol:  symbol,
		scale:   int32(scale),
		printer: message.NewPrinter(tag),
	}, nil
}

// NewFromConfig builds the formatter configured for checkout.
func NewFromConfig(cfg config.CheckoutConfig) (*LocaleFormatter, error) {
	return NewLocaleFormatter(cfg.Currency, cfg.CurrencySymbol, cfg.Locale)
}

// Currency returns the ISO code of the formatter's currency.
func (f *LocaleFormatter) Currency() string {
	return f.unit.String()
}

// Format renders minor as e.g. "₦1,050.00" for 105000 kobo.
func (f *LocaleFormatter) Format(minor int64) string {
	amount := decimal.New(minor, -f.scale)
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Abs()
	}

	fixed := amount.StringFixed(f.scale)
	whole, frac, _ := strings.Cut(fixed, ".")

	wholeValue, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return sign + f.symbol + fixed
	}

	grouped := f.printer.Sprintf("%d", wholeValue)
	if f.scale == 0 {
		return sign + f.symbol + grouped
	}
	return sign + f.symbol + grouped + "." + frac
}
