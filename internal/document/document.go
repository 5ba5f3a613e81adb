package document

import (
	"bytes"
	"fmt"
	"time"

	"github.com/avstrong/hotel/internal/invoice"
	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Invoice"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	timeLayout = "2006-01-02 15:04"
	dateLayout = "2006-01-02"
)

// Input is a frozen copy of everything printed on the final invoice.
type Input struct {
	BookingID        string
	GuestName        string
	GuestEmail       string
	RoomID           string
	Category         string
	CheckIn          time.Time
	CheckOut         time.Time
	ExpectedCheckout time.Time
	ActualCheckout   time.Time
	PromotionTitle   string
	Invoice          invoice.Invoice
}

type Renderer struct {
	loc *time.Location
}

func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.Local
	}

	return &Renderer{loc: loc}
}

// Render builds a single-sheet XLSX workbook. The output depends only on in.
func (r *Renderer) Render(in Input) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	rows := r.rows(in)

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("cell name for row %d: %w", i+1, err)
		}

		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	//nolint:gomnd
	if err := f.SetColWidth(SheetName, "A", "A", 28); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	return buf.Bytes(), nil
}

func (r *Renderer) rows(in Input) [][]any {
	inv := in.Invoice

	rows := [][]any{
		{"Invoice", inv.ID},
		{"Booking", in.BookingID},
		{"Guest", in.GuestName},
		{"Email", in.GuestEmail},
		{"Room", in.RoomID, in.Category},
		{"Check-in", r.format(in.CheckIn, dateLayout)},
		{"Check-out", r.format(in.CheckOut, dateLayout)},
		{"Expected checkout", r.format(in.ExpectedCheckout, timeLayout)},
		{"Actual checkout", r.format(in.ActualCheckout, timeLayout)},
		{},
		{"Item", "Unit price", "Quantity", "Amount"},
		{"Room", inv.RatePerNight, inv.Nights * inv.RoomCount, inv.RoomCharge},
	}

	for _, s := range inv.Services {
		rows = append(rows, []any{s.Name, s.UnitPrice, s.Quantity, s.Total()})
	}

	discountLabel := "Discount"
	if in.PromotionTitle != "" {
		discountLabel = "Discount (" + in.PromotionTitle + ")"
	}

	rows = append(rows,
		[]any{discountLabel, "", "", -inv.Discount},
		[]any{fmt.Sprintf("Late fee (%dh)", inv.LateHours), "", "", inv.LateFee},
		[]any{"Total", "", "", inv.Total},
		[]any{},
		[]any{"Payment", "Method", "Time", "Amount"},
	)

	for _, p := range inv.Payments.Entries() {
		rows = append(rows, []any{p.ID, string(p.Method), r.format(p.Timestamp, timeLayout), p.Amount})
	}

	rows = append(rows,
		[]any{"Paid", "", "", inv.AmountPaid()},
		[]any{"Remaining", "", "", inv.Remaining()},
	)

	if inv.IssuedAt != nil {
		rows = append(rows, []any{"Issued", r.format(*inv.IssuedAt, timeLayout)})
	}

	return rows
}

func (r *Renderer) format(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}

	return t.In(r.loc).Format(layout)
}
