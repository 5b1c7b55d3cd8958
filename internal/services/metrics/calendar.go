package metrics

import (
	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/au"
	"github.com/rickar/cal/v2/ca"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/es"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/it"
	"github.com/rickar/cal/v2/jp"
	"github.com/rickar/cal/v2/nl"
	"github.com/rickar/cal/v2/us"
)

var regionHolidays = map[string][]*cal.Holiday{
	"US": us.Holidays,
	"GB": gb.Holidays,
	"DE": de.Holidays,
	"FR": fr.Holidays,
	"JP": jp.Holidays,
	"CA": ca.Holidays,
	"AU": au.HolidaysNSW,
	"NL": nl.Holidays,
	"ES": es.Holidays,
	"IT": it.Holidays,
}

// NewBusinessCalendar returns a holiday-aware business calendar for the
// given ISO country code, or nil for unknown/empty codes. A nil calendar
// makes the sprint outlook skip weekends only.
func NewBusinessCalendar(region string) *cal.BusinessCalendar {
	holidays, ok := regionHolidays[region]
	if !ok {
		return nil
	}
	c := cal.NewBusinessCalendar()
	c.AddHoliday(holidays...)
	return c
}
