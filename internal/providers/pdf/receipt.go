package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

var ErrMissingOrder = errors.New("receipt_missing_order")

// ReceiptData describes one verified subscription purchase. AmountPaid is in
// the currency's minor unit.
type ReceiptData struct {
	UserEmail string
	PlanName  string
	Coins     int64
	OrderID   string
	PaymentID string
	Currency  string

	AmountPaid int64
	StartDate  time.Time
	EndDate    time.Time
}

// FormatMinor renders a minor-unit amount such as 19900 INR as "INR 199.00".
func FormatMinor(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s %s%d.%02d", strings.ToUpper(currency), sign, amount/100, amount%100)
}

func (p *PDFProvider) GenerateReceipt(ctx context.Context, receipt ReceiptData) (io.Reader, error) {
	if receipt.OrderID == "" {
		return nil, ErrMissingOrder
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(14,
		text.NewCol(12, "Receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	datePaid := receipt.StartDate.UTC().Format("2006-01-02")
	m.AddRow(20,
		col.New(6).Add(
			text.New("Order: "+receipt.OrderID, props.Text{Top: 0}),
			text.New("Payment: "+receipt.PaymentID, props.Text{Top: 4}),
			text.New("Date paid: "+datePaid, props.Text{Top: 8}),
			text.New("Billed to: "+receipt.UserEmail, props.Text{Top: 12}),
		),
		col.New(6),
	)

	total := FormatMinor(receipt.AmountPaid, receipt.Currency)
	m.AddRow(15,
		text.NewCol(12, total+" paid on "+datePaid, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(10,
		text.NewCol(6, "Plan", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Period", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Coins", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	period := receipt.StartDate.UTC().Format("2006-01-02") + " to " + receipt.EndDate.UTC().Format("2006-01-02")
	m.AddRow(12,
		text.NewCol(6, receipt.PlanName, props.Text{Size: 9}),
		text.NewCol(4, period, props.Text{Size: 9}),
		text.NewCol(2, fmt.Sprintf("%d", receipt.Coins), props.Text{Size: 9, Align: align.Right}),
	)

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Size: 9, Style: fontstyle.Bold}),
		text.NewCol(2, total, props.Text{Size: 9, Align: align.Right, Style: fontstyle.Bold}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
