package services

import (
	"fmt"
	"time"
)

// DateLayout ist das Datumsformat für Routen und CLI-Flags.
const DateLayout = "2006-01-02"

// ParseDate parst ein Datum im Format YYYY-MM-DD als UTC-Kalendertag.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// CalendarDay ist eine Zelle im Monatsraster. Day == 0 markiert einen
// Platzhalter außerhalb des Monats.
type CalendarDay struct {
	Day     int    `json:"day"`
	Count   int64  `json:"count"`
	DateStr string `json:"date_str,omitempty"`
}

// CalendarMonth enthält die Zellen eines Monats, wochenweise ab Montag.
type CalendarMonth struct {
	Name string        `json:"name"`
	Days []CalendarDay `json:"days"`
}

// YearCount ist die Anzahl Papers eines Jahres.
type YearCount struct {
	Year  int   `json:"year"`
	Count int64 `json:"count"`
}

// BuildCalendar baut das Raster der zwölf Monate. counts ist nach
// YYYY-MM-DD indiziert.
func BuildCalendar(year int, counts map[string]int64) []CalendarMonth {
	months := make([]CalendarMonth, 0, 12)
	for m := time.January; m <= time.December; m++ {
		first := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
		daysInMonth := first.AddDate(0, 1, -1).Day()

		// Montag = 0
		lead := (int(first.Weekday()) + 6) % 7

		days := make([]CalendarDay, 0, 42)
		for i := 0; i < lead; i++ {
			days = append(days, CalendarDay{})
		}
		for d := 1; d <= daysInMonth; d++ {
			dateStr := fmt.Sprintf("%04d-%02d-%02d", year, int(m), d)
			days = append(days, CalendarDay{Day: d, Count: counts[dateStr], DateStr: dateStr})
		}
		for len(days)%7 != 0 {
			days = append(days, CalendarDay{})
		}

		months = append(months, CalendarMonth{Name: m.String(), Days: days})
	}
	return months
}
