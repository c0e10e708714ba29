package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Kind string

const (
	KindInquiry     Kind = "inquiry"
	KindQuote       Kind = "quote"
	KindInvoice     Kind = "invoice"
	KindChangeOrder Kind = "change_order"
)

// Generator mints human-readable identifiers. A non-nil tx makes the sequence
// allocation part of the caller's transaction.
type Generator interface {
	GenerateInquiryNumber(ctx context.Context, tx *gorm.DB) (string, error)
	GenerateQuoteNumber(ctx context.Context, tx *gorm.DB) (string, error)
	GenerateInvoiceNumber(ctx context.Context, tx *gorm.DB) (string, error)
	GenerateChangeOrderCode(ctx context.Context, tx *gorm.DB) string
	Generate(ctx context.Context, tx *gorm.DB, kind Kind) (string, error)
}

var ErrUnknownKind = errors.New("unknown_identifier_kind")

func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindInquiry, KindQuote, KindInvoice, KindChangeOrder:
		return Kind(raw), nil
	case "change-order":
		return KindChangeOrder, nil
	default:
		return "", ErrUnknownKind
	}
}
