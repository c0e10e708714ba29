package service

import (
	"context"
	"fmt"

	"github.com/smallbiznis/buildledger/internal/clock"
	"github.com/smallbiznis/buildledger/internal/identifier/domain"
	"github.com/smallbiznis/buildledger/internal/identifier/format"
	sequencedomain "github.com/smallbiznis/buildledger/internal/sequence/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	inquiryCounter     = "inquiry_number"
	quoteCounter       = "quote_number"
	invoiceCounter     = "invoice_number"
	changeOrderCounter = "change_order_code"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Strategy sequencedomain.Strategy
	Clock    clock.Clock `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	strategy sequencedomain.Strategy
	clock    clock.Clock
}

func New(p Params) domain.Generator {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		log:      p.Log.Named("identifier.service"),
		strategy: p.Strategy,
		clock:    c,
	}
}

// GenerateInquiryNumber issues INQ-YYYY-NNNNNN from a counter that restarts every year.
func (s *Service) GenerateInquiryNumber(ctx context.Context, tx *gorm.DB) (string, error) {
	year := s.clock.Now().Year()
	seq, err := s.strategy.Next(ctx, tx, sequencedomain.Request{
		Name:   fmt.Sprintf("%s:%d", inquiryCounter, year),
		Prefix: format.YearPrefix(format.InquiryPrefix, year),
		Table:  "projects",
		Column: "inquiry_number",
	})
	if err != nil {
		return "", err
	}
	return format.FormatInquiryNumber(year, seq), nil
}

func (s *Service) GenerateQuoteNumber(ctx context.Context, tx *gorm.DB) (string, error) {
	year := s.clock.Now().Year()
	seq, err := s.strategy.Next(ctx, tx, sequencedomain.Request{
		Name:   fmt.Sprintf("%s:%d", quoteCounter, year),
		Prefix: format.YearPrefix(format.QuotePrefix, year),
		Table:  "quotes",
		Column: "quote_number",
	})
	if err != nil {
		return "", err
	}
	return format.FormatQuoteNumber(year, seq), nil
}

func (s *Service) GenerateInvoiceNumber(ctx context.Context, tx *gorm.DB) (string, error) {
	seq, err := s.strategy.Next(ctx, tx, sequencedomain.Request{
		Name:   invoiceCounter,
		Prefix: format.InvoicePrefix + "-",
		Table:  "invoices",
		Column: "invoice_number",
	})
	if err != nil {
		return "", err
	}
	return format.FormatInvoiceNumber(seq), nil
}

// GenerateChangeOrderCode always yields a code. Allocation failures fall back to
// the epoch-millisecond form, which stays unique but is not ordered with the sequence.
func (s *Service) GenerateChangeOrderCode(ctx context.Context, tx *gorm.DB) string {
	seq, err := s.strategy.Next(ctx, tx, sequencedomain.Request{
		Name:   changeOrderCounter,
		Prefix: format.ChangeOrderPrefix + "-",
		Table:  "change_orders",
		Column: "code",
	})
	if err != nil {
		code := format.FallbackChangeOrderCode(s.clock.Now())
		s.log.Warn("change order sequence unavailable, using fallback code",
			zap.String("code", code),
			zap.Error(err),
		)
		return code
	}
	return format.FormatChangeOrderCode(seq)
}

func (s *Service) Generate(ctx context.Context, tx *gorm.DB, kind domain.Kind) (string, error) {
	switch kind {
	case domain.KindInquiry:
		return s.GenerateInquiryNumber(ctx, tx)
	case domain.KindQuote:
		return s.GenerateQuoteNumber(ctx, tx)
	case domain.KindInvoice:
		return s.GenerateInvoiceNumber(ctx, tx)
	case domain.KindChangeOrder:
		return s.GenerateChangeOrderCode(ctx, tx), nil
	default:
		return "", domain.ErrUnknownKind
	}
}
