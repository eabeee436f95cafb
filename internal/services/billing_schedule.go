// Package services holds the application's orchestration logic: the
// dashboard read model, ledger writes with their events, the category
// catalog and subscription billing.
//
// This file implements the billing schedules. Each subscription frequency
// has its own strategy for computing the next billing date.
package services

import (
	"fmt"
	"time"

	"finora/internal/core"
)

// BillingSchedule computes the billing date that follows from. anchorDay is
// the day of month the subscription is billed on; months too short for it
// bill on their last day instead.
type BillingSchedule interface {
	Next(from core.Date, anchorDay int) core.Date
}

// MonthlySchedule bills once per calendar month.
type MonthlySchedule struct{}

func (MonthlySchedule) Next(from core.Date, anchorDay int) core.Date {
	return addMonthsClamped(from, 1, anchorDay)
}

// YearlySchedule bills once per year on the same month.
type YearlySchedule struct{}

func (YearlySchedule) Next(from core.Date, anchorDay int) core.Date {
	return addMonthsClamped(from, 12, anchorDay)
}

func addMonthsClamped(from core.Date, months, anchorDay int) core.Date {
	first := time.Date(from.Year(), from.Month()+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	day := anchorDay
	if day < 1 {
		day = from.Day()
	}
	if day > last {
		day = last
	}
	return core.NewDate(first.Year(), first.Month(), day)
}

var billingSchedules = map[core.Frequency]BillingSchedule{
	core.Monthly: MonthlySchedule{},
	core.Yearly:  YearlySchedule{},
}

// GetBillingSchedule returns the schedule for a subscription frequency.
func GetBillingSchedule(frequency core.Frequency) (BillingSchedule, error) {
	schedule, ok := billingSchedules[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown billing frequency: %s", frequency)
	}
	return schedule, nil
}
