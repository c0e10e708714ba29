package format

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	InquiryPrefix     = "INQ"
	QuotePrefix       = "QTE"
	InvoicePrefix     = "INV"
	ChangeOrderPrefix = "CO"

	sequenceWidth = 6
)

var ErrMalformed = errors.New("malformed_identifier")

// FormatInquiryNumber renders INQ-YYYY-NNNNNN. Sequences wider than six digits are kept whole.
func FormatInquiryNumber(year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%0*d", InquiryPrefix, year, sequenceWidth, seq)
}

func FormatQuoteNumber(year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%0*d", QuotePrefix, year, sequenceWidth, seq)
}

func FormatInvoiceNumber(seq int64) string {
	return fmt.Sprintf("%s-%0*d", InvoicePrefix, sequenceWidth, seq)
}

func FormatChangeOrderCode(seq int64) string {
	return fmt.Sprintf("%s-%0*d", ChangeOrderPrefix, sequenceWidth, seq)
}

// FallbackChangeOrderCode is used when no sequence value could be allocated.
func FallbackChangeOrderCode(t time.Time) string {
	return fmt.Sprintf("%s-%d", ChangeOrderPrefix, t.UnixMilli())
}

// YearPrefix returns the stored prefix shared by every identifier of a year, e.g. "INQ-2026-".
func YearPrefix(prefix string, year int) string {
	return fmt.Sprintf("%s-%04d-", prefix, year)
}

func ParseInquiryNumber(value string) (int, int64, error) {
	return parseYearly(InquiryPrefix, value)
}

func ParseQuoteNumber(value string) (int, int64, error) {
	return parseYearly(QuotePrefix, value)
}

func ParseInvoiceNumber(value string) (int64, error) {
	return parsePlain(InvoicePrefix, value)
}

// ParseChangeOrderCode also accepts the epoch-millisecond fallback form.
func ParseChangeOrderCode(value string) (int64, error) {
	return parsePlain(ChangeOrderPrefix, value)
}

func parseYearly(prefix, value string) (int, int64, error) {
	parts := strings.Split(value, "-")
	if len(parts) != 3 || parts[0] != prefix || len(parts[1]) != 4 {
		return 0, 0, ErrMalformed
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, ErrMalformed
	}
	seq, err := parseSequence(parts[2])
	if err != nil {
		return 0, 0, err
	}
	return year, seq, nil
}

func parsePlain(prefix, value string) (int64, error) {
	parts := strings.Split(value, "-")
	if len(parts) != 2 || parts[0] != prefix {
		return 0, ErrMalformed
	}
	return parseSequence(parts[1])
}

func parseSequence(raw string) (int64, error) {
	if len(raw) < sequenceWidth {
		return 0, ErrMalformed
	}
	seq, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seq < 0 {
		return 0, ErrMalformed
	}
	return seq, nil
}
