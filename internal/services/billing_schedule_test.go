package services

import (
	"testing"

	"finora/internal/core"
)

func TestMonthlySchedule_Next(t *testing.T) {
	tests := []struct {
		name   string
		from   core.Date
		anchor int
		want   string
	}{
		{"mid month", core.NewDate(2025, 1, 15), 15, "2025-02-15"},
		{"clamps to february", core.NewDate(2025, 1, 31), 31, "2025-02-28"},
		{"leap february", core.NewDate(2024, 1, 31), 31, "2024-02-29"},
		{"anchor restores after short month", core.NewDate(2025, 2, 28), 31, "2025-03-31"},
		{"thirty day month", core.NewDate(2025, 3, 31), 31, "2025-04-30"},
		{"year rollover", core.NewDate(2025, 12, 10), 10, "2026-01-10"},
		{"zero anchor uses from day", core.NewDate(2025, 5, 20), 0, "2025-06-20"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (MonthlySchedule{}).Next(tt.from, tt.anchor).String(); got != tt.want {
				t.Errorf("Next(%s, %d) = %s, want %s", tt.from, tt.anchor, got, tt.want)
			}
		})
	}
}

func TestYearlySchedule_Next(t *testing.T) {
	tests := []struct {
		name   string
		from   core.Date
		anchor int
		want   string
	}{
		{"plain", core.NewDate(2025, 3, 1), 1, "2026-03-01"},
		{"leap day clamps", core.NewDate(2024, 2, 29), 29, "2025-02-28"},
		{"leap day returns", core.NewDate(2027, 2, 28), 29, "2028-02-29"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (YearlySchedule{}).Next(tt.from, tt.anchor).String(); got != tt.want {
				t.Errorf("Next(%s, %d) = %s, want %s", tt.from, tt.anchor, got, tt.want)
			}
		})
	}
}

func TestGetBillingSchedule(t *testing.T) {
	for _, f := range []core.Frequency{core.Monthly, core.Yearly} {
		if _, err := GetBillingSchedule(f); err != nil {
			t.Errorf("GetBillingSchedule(%s): %v", f, err)
		}
	}
	if _, err := GetBillingSchedule("weekly"); err == nil {
		t.Error("unsupported frequency should fail")
	}
}
