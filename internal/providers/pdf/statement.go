package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

var ErrMissingUser = errors.New("statement_missing_user")

// StatementData is a user's balance plus the ledger entries to list,
// newest first.
type StatementData struct {
	UserID      string
	Email       string
	GeneratedAt time.Time

	EarnedCoins int64
	BonusCoins  int64
	SpentCoins  int64
	TotalCoins  int64

	Entries []StatementEntry
}

type StatementEntry struct {
	TransactionID string
	OccurredAt    time.Time
	Type          string
	Description   string
	Amount        int64
}

// signedAmount shows spends as debits; every other type credits or is zero.
func (e StatementEntry) signedAmount() string {
	if e.Type == "spend" {
		return fmt.Sprintf("-%d", e.Amount)
	}
	return fmt.Sprintf("+%d", e.Amount)
}

func (p *PDFProvider) GenerateStatement(ctx context.Context, st StatementData) (io.Reader, error) {
	if st.UserID == "" {
		return nil, ErrMissingUser
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Rraasi Coin Statement", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(16,
		col.New(6).Add(
			text.New("Account: "+st.UserID, props.Text{Top: 0}),
			text.New("Email: "+st.Email, props.Text{Top: 4}),
			text.New("Generated: "+st.GeneratedAt.UTC().Format(time.RFC1123), props.Text{Top: 8}),
		),
		col.New(6),
	)

	m.AddRow(20,
		col.New(3).Add(
			text.New("Earned", props.Text{Style: fontstyle.Bold, Size: 9}),
			text.New(fmt.Sprintf("%d", st.EarnedCoins), props.Text{Top: 5}),
		),
		col.New(3).Add(
			text.New("Bonus", props.Text{Style: fontstyle.Bold, Size: 9}),
			text.New(fmt.Sprintf("%d", st.BonusCoins), props.Text{Top: 5}),
		),
		col.New(3).Add(
			text.New("Spent", props.Text{Style: fontstyle.Bold, Size: 9}),
			text.New(fmt.Sprintf("%d", st.SpentCoins), props.Text{Top: 5}),
		),
		col.New(3).Add(
			text.New("Total", props.Text{Style: fontstyle.Bold, Size: 9}),
			text.New(fmt.Sprintf("%d", st.TotalCoins), props.Text{Top: 5, Style: fontstyle.Bold}),
		),
	)

	m.AddRow(10,
		text.NewCol(3, "Date", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Type", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(5, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Coins", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if len(st.Entries) == 0 {
		m.AddRow(10, text.NewCol(12, "No transactions yet.", props.Text{Size: 9}))
	}
	for _, e := range st.Entries {
		m.AddRow(8,
			text.NewCol(3, e.OccurredAt.UTC().Format("2006-01-02 15:04"), props.Text{Size: 8}),
			text.NewCol(2, e.Type, props.Text{Size: 8}),
			text.NewCol(5, e.Description, props.Text{Size: 8}),
			text.NewCol(2, e.signedAmount(), props.Text{Size: 8, Align: align.Right}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
