package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMatchShapes(t *testing.T) {
	tests := []struct {
		input string
		raw   string
		year  int
	}{
		{"15/01/2024 CARD PAYMENT", "15/01/2024", 2024},
		{"1/1/24 PAYMENT", "1/1/24", 2024},
		{"2/11/2022 1,136.00", "2/11/2022", 2022},
		{"15 Jan 2024 CARD PAYMENT", "15 Jan 2024", 2024},
		{"15-Jan-24 PAYMENT", "15-Jan-24", 2024},
		{"Oct 13, 2022 PAYMENT", "Oct 13, 2022", 2022},
		{"2024-03-15 DEPOSIT", "2024-03-15", 2024},
		{"03/15 DEPOSIT", "03/15", 0},
		{"Oct 13 Oct 13 INTERNET", "Oct 13", 0},
		{"4 Dec Card payment", "4 Dec", 0},
		{"12 mrt 2023 Overboeking", "12 mrt 2023", 2023},
		{"03.01.2023 Bij", "03.01.2023", 2023},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, n, ok := Match(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.raw, p.Raw)
			assert.Equal(t, len(tt.raw), n)
			assert.Equal(t, tt.year, p.Year)
		})
	}
}

func TestMatchRejects(t *testing.T) {
	for _, input := range []string{"CARD PAYMENT 15/01/2024", "10 Market Street", "1,234.56", "45/13/2022", "", "Mayfair 12"} {
		t.Run(input, func(t *testing.T) {
			_, _, ok := Match(input)
			assert.False(t, ok)
		})
	}
}

func TestFindAll(t *testing.T) {
	found := FindAll("Statement period 01/03/2024 to 31/03/2024, printed 2 Apr")
	require.Len(t, found, 3)
	assert.Equal(t, "01/03/2024", found[0].Raw)
	assert.Equal(t, "31/03/2024", found[1].Raw)
	assert.Equal(t, "2 Apr", found[2].Raw)
	assert.True(t, HasDate("paid on Oct 13"))
	assert.False(t, HasDate("no dates here 1,234.56"))
}

func TestResolveWithYear(t *testing.T) {
	r := NewResolver(models.Period{Start: day(2022, 2, 1), End: day(2022, 2, 28)}, models.MonthFirst)
	got, ok := r.ResolveString("2/11/2022")
	require.True(t, ok)
	assert.Equal(t, day(2022, 2, 11), got)

	_, ok = r.ResolveString("6/30/2022")
	assert.False(t, ok, "dates far outside the period are ambiguous")

	_, ok = r.ResolveString("2/30/2022")
	assert.False(t, ok)
}

func TestResolveYearless(t *testing.T) {
	r := NewResolver(models.Period{Start: day(2022, 9, 14), End: day(2022, 10, 13)}, models.MonthFirst)
	got, ok := r.ResolveString("Oct 13")
	require.True(t, ok)
	assert.Equal(t, day(2022, 10, 13), got)

	r = NewResolver(models.Period{Start: day(2024, 3, 1), End: day(2024, 3, 31)}, models.MonthFirst)
	got, ok = r.ResolveString("03/15")
	require.True(t, ok)
	assert.Equal(t, day(2024, 3, 15), got)
}

func TestResolveAcrossNewYear(t *testing.T) {
	r := NewResolver(models.Period{Start: day(2022, 12, 15), End: day(2023, 1, 14)}, models.DayFirst)
	got, ok := r.ResolveString("05 Jan")
	require.True(t, ok)
	assert.Equal(t, day(2023, 1, 5), got)

	got, ok = r.ResolveString("20 Dec")
	require.True(t, ok)
	assert.Equal(t, day(2022, 12, 20), got)
}

func TestResolveInSlackOfAdjacentYear(t *testing.T) {
	january := models.Period{Start: day(2024, 1, 1), End: day(2024, 1, 31)}
	december := models.Period{Start: day(2023, 12, 1), End: day(2023, 12, 31)}
	tests := []struct {
		name   string
		period models.Period
		order  models.DateOrder
		raw    string
		want   time.Time
	}{
		{"numeric december on january statement", january, models.MonthFirst, "12/29", day(2023, 12, 29)},
		{"month first name", january, models.MonthFirst, "Dec 29", day(2023, 12, 29)},
		{"day first name", january, models.DayFirst, "29 Dec", day(2023, 12, 29)},
		{"january on december statement", december, models.MonthFirst, "01/03", day(2024, 1, 3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.period, tt.order)
			got, ok := r.ResolveString(tt.raw)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := NewResolver(january, models.MonthFirst).ResolveString("12/15")
	assert.False(t, ok, "outside the slack")
}

func TestResolveLongPeriodUsesNeighbor(t *testing.T) {
	r := NewResolver(models.Period{Start: day(2022, 1, 1), End: day(2023, 12, 31)}, models.DayFirst)
	p, _, ok := Match("10 Mar")
	require.True(t, ok)

	got, ok := r.Resolve(p, time.Time{})
	require.True(t, ok)
	assert.Equal(t, day(2022, 3, 10), got, "earlier candidate without a neighbour")

	got, ok = r.Resolve(p, day(2023, 3, 2))
	require.True(t, ok)
	assert.Equal(t, day(2023, 3, 10), got)
}

func TestResolveWithoutPeriodUsesClock(t *testing.T) {
	r := NewResolver(models.Period{}, models.DayFirst)
	r.Now = func() time.Time { return day(2025, 6, 1) }
	got, ok := r.ResolveString("4 Dec")
	require.True(t, ok)
	assert.Equal(t, day(2025, 12, 4), got)
}

func TestElectOrder(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		period   models.Period
		fallback models.DateOrder
		want     models.DateOrder
	}{
		{"day above twelve decides", "03/01/2024 05/01/2024 25/01/2024", models.Period{}, models.MonthFirst, models.DayFirst},
		{"month first by calendar", "01/25/2024 02/13/2024", models.Period{}, models.DayFirst, models.MonthFirst},
		{"tie keeps fallback", "03/04/2024 05/06/2024", models.Period{}, models.DayFirst, models.DayFirst},
		{"period breaks ties", "03/04/2024 03/09/2024", models.Period{Start: day(2024, 3, 1), End: day(2024, 3, 31)}, models.DayFirst, models.MonthFirst},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ElectOrder(FindAll(tt.text), tt.period, tt.fallback))
		})
	}
}
