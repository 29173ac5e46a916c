// Package validation checks and normalises user input before it reaches the services.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	MaxQuantity = 1_000_000
	MaxPrice    = 10_000_000
)

var (
	symbolPattern   = regexp.MustCompile(`^[A-Z0-9]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// Error carries a message that is safe to show to the user.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Errorf builds a validation Error.
func Errorf(format string, args ...interface{}) error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err, or anything it wraps, is a validation Error.
func IsValidationError(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

// Symbol upper-cases and checks a trading symbol such as BTCUSDT.
func Symbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case s == "":
		return "", Errorf("Symbol is required")
	case len(s) > 20:
		return "", Errorf("Symbol is too long")
	case !symbolPattern.MatchString(s):
		return "", Errorf("Invalid symbol format")
	}
	return s, nil
}

// Side normalises BUY or SELL.
func Side(side string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(side))
	if s == "" {
		return "", Errorf("Trade side is required (BUY or SELL)")
	}
	if s != "BUY" && s != "SELL" {
		return "", Errorf("Trade side must be BUY or SELL")
	}
	return s, nil
}

// Quantity checks a trade quantity.
func Quantity(q float64) error {
	if q <= 0 {
		return Errorf("Quantity must be greater than 0")
	}
	if q > MaxQuantity {
		return Errorf("Quantity is too large")
	}
	return nil
}

// Price checks a trade price.
func Price(p float64) error {
	if p <= 0 {
		return Errorf("Price must be greater than 0")
	}
	if p > MaxPrice {
		return Errorf("Price is too high")
	}
	return nil
}

// ParseQuantity parses and checks a quantity given as text.
func ParseQuantity(s string) (float64, error) {
	q, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, Errorf("Invalid quantity format")
	}
	return q, Quantity(q)
}

// ParsePrice parses and checks a price given as text.
func ParsePrice(s string) (float64, error) {
	p, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, Errorf("Invalid price format")
	}
	return p, Price(p)
}

// Trade validates all fields of a manual paper trade.
func Trade(symbol, side string, quantity, price float64) (string, string, error) {
	sym, err := Symbol(symbol)
	if err != nil {
		return "", "", err
	}
	sd, err := Side(side)
	if err != nil {
		return "", "", err
	}
	if err := Quantity(quantity); err != nil {
		return "", "", err
	}
	if err := Price(price); err != nil {
		return "", "", err
	}
	return sym, sd, nil
}

// Username checks a login name.
func Username(username string) (string, error) {
	u := strings.TrimSpace(username)
	switch {
	case u == "":
		return "", Errorf("Username is required")
	case len(u) < 3:
		return "", Errorf("Username must be at least 3 characters long")
	case len(u) > 50:
		return "", Errorf("Username is too long (max 50 characters)")
	case !usernamePattern.MatchString(u):
		return "", Errorf("Username can only contain letters, numbers, and underscores")
	}
	return u, nil
}

// Email checks an email address.
func Email(email string) (string, error) {
	e := strings.TrimSpace(email)
	switch {
	case e == "":
		return "", Errorf("Email is required")
	case len(e) > 100:
		return "", Errorf("Email is too long (max 100 characters)")
	case !emailPattern.MatchString(e):
		return "", Errorf("Invalid email format (example: user@example.com)")
	}
	return e, nil
}

// Password checks password length. Passwords are never trimmed.
func Password(password string) error {
	switch {
	case password == "":
		return Errorf("Password is required")
	case len(password) < 6:
		return Errorf("Password must be at least 6 characters long")
	case len(password) > 128:
		return Errorf("Password is too long (max 128 characters)")
	}
	return nil
}

// Sanitize trims s, drops NUL bytes and truncates it to maxLen bytes.
func Sanitize(s string, maxLen int) string {
	out := strings.ReplaceAll(strings.TrimSpace(s), "\x00", "")
	if maxLen > 0 && len(out) > maxLen {
		out = out[:maxLen]
	}
	return out
}
