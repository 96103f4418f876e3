package snapshot

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// CSVCodec stores one record per line, the kind in the first column.
//
//	control,version,clock,session,session_day,last_open_day,random,trade
//	stock,id,name,symbol,volatility,price,open,close,high,low,trend_pct,trend_start,trend_end,trend_steps,trend_step
//	history,stock_id,date,open,close,high,low,trend_pct
//
// A nullable value is an empty field. The trend columns are empty without a trend.
type CSVCodec struct{}

const (
	controlFields = 8
	stockFields   = 15
	historyFields = 8
)

func (CSVCodec) Encode(w io.Writer, recs []Record) error {
	cw := csv.NewWriter(w)
	for i, r := range recs {
		var row []string
		switch {
		case r.Kind == KindControl && r.Control != nil:
			row = controlRow(r.Control)
		case r.Kind == KindStock && r.Stock != nil:
			row = stockRow(r.Stock)
		case r.Kind == KindHistory && r.History != nil:
			row = historyRow(r.History)
		default:
			return fmt.Errorf("record %d: cannot encode kind %q", i, r.Kind)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (CSVCodec) Decode(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var recs []Record
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCorruptSnapshot, line, err)
		}

		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCorruptSnapshot, line, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func controlRow(c *ControlRecord) []string {
	return []string{
		string(KindControl),
		strconv.Itoa(c.Version),
		formatTime(c.Clock),
		c.Session,
		formatTime(c.SessionDay),
		formatTime(c.LastOpenDay),
		c.Random,
		c.Trade,
	}
}

func stockRow(s *StockRecord) []string {
	row := []string{
		string(KindStock),
		strconv.FormatInt(s.ID, 10),
		s.Name,
		s.Symbol,
		s.Volatility.String(),
		s.Price.String(),
		s.Open.String(),
		formatNullable(s.Close),
		s.High.String(),
		s.Low.String(),
	}
	if s.Trend == nil {
		return append(row, "", "", "", "", "")
	}
	return append(row,
		strconv.Itoa(s.Trend.Percentage),
		s.Trend.Start.String(),
		s.Trend.End.String(),
		strconv.Itoa(s.Trend.Steps),
		strconv.Itoa(s.Trend.Step),
	)
}

func historyRow(h *HistoryRecord) []string {
	return []string{
		string(KindHistory),
		strconv.FormatInt(h.StockID, 10),
		formatTime(h.Date),
		h.Open.String(),
		formatNullable(h.Close),
		h.High.String(),
		h.Low.String(),
		strconv.Itoa(h.TrendPercentage),
	}
}

func parseRow(row []string) (Record, error) {
	if len(row) == 0 {
		return Record{}, errors.New("empty row")
	}
	p := &fieldParser{row: row}

	switch Kind(row[0]) {
	case KindControl:
		if err := p.expect(controlFields); err != nil {
			return Record{}, err
		}
		c := &ControlRecord{
			Version:     p.atoi(1),
			Clock:       p.ts(2),
			Session:     row[3],
			SessionDay:  p.ts(4),
			LastOpenDay: p.ts(5),
			Random:      row[6],
			Trade:       row[7],
		}
		return Record{Kind: KindControl, Control: c}, p.err

	case KindStock:
		if err := p.expect(stockFields); err != nil {
			return Record{}, err
		}
		s := &StockRecord{
			ID:         p.atoi64(1),
			Name:       row[2],
			Symbol:     row[3],
			Volatility: p.dec(4),
			Price:      p.dec(5),
			Open:       p.dec(6),
			Close:      p.nullDec(7),
			High:       p.dec(8),
			Low:        p.dec(9),
		}
		if row[10] != "" {
			s.Trend = &TrendRecord{
				Percentage: p.atoi(10),
				Start:      p.dec(11),
				End:        p.dec(12),
				Steps:      p.atoi(13),
				Step:       p.atoi(14),
			}
		}
		return Record{Kind: KindStock, Stock: s}, p.err

	case KindHistory:
		if err := p.expect(historyFields); err != nil {
			return Record{}, err
		}
		h := &HistoryRecord{
			StockID:         p.atoi64(1),
			Date:            p.ts(2),
			Open:            p.dec(3),
			Close:           p.nullDec(4),
			High:            p.dec(5),
			Low:             p.dec(6),
			TrendPercentage: p.atoi(7),
		}
		return Record{Kind: KindHistory, History: h}, p.err

	default:
		return Record{}, fmt.Errorf("unknown record kind %q", row[0])
	}
}

// fieldParser keeps the first parse error so rows can be decoded in one
// expression.
type fieldParser struct {
	row []string
	err error
}

func (p *fieldParser) expect(n int) error {
	if len(p.row) != n {
		return fmt.Errorf("%s row has %d fields, want %d", p.row[0], len(p.row), n)
	}
	return nil
}

func (p *fieldParser) fail(i int, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("field %d: %w", i, err)
	}
}

func (p *fieldParser) atoi(i int) int {
	v, err := strconv.Atoi(p.row[i])
	if err != nil {
		p.fail(i, err)
	}
	return v
}

func (p *fieldParser) atoi64(i int) int64 {
	v, err := strconv.ParseInt(p.row[i], 10, 64)
	if err != nil {
		p.fail(i, err)
	}
	return v
}

func (p *fieldParser) dec(i int) decimal.Decimal {
	v, err := decimal.NewFromString(p.row[i])
	if err != nil {
		p.fail(i, err)
	}
	return v
}

func (p *fieldParser) nullDec(i int) *decimal.Decimal {
	if p.row[i] == "" {
		return nil
	}
	v := p.dec(i)
	return &v
}

func (p *fieldParser) ts(i int) time.Time {
	v, err := time.Parse(time.RFC3339Nano, p.row[i])
	if err != nil {
		p.fail(i, err)
	}
	return v
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func formatNullable(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}
