package dispatch

import (
	"time"

	"github.com/me/hireflow/pkg/model"
)

// Templater supplies the slot options and format notes carried by an
// invitation payload.
type Templater interface {
	Slots(from time.Time, days, perDay int) []model.SlotOption
	FormatNotes() []string
}

// DefaultSlotHours are the local start hours offered on each business day.
var DefaultSlotHours = []int{10, 14}

// DefaultFormatNotes describe the interview format.
var DefaultFormatNotes = []string{
	"Duration: 45-60 minutes",
	"Technical discussion about your experience",
	"Questions about the role and company",
	"Q&A session",
}

// BusinessDayTemplater proposes slots on the business days following a
// reference time, skipping Saturdays and Sundays.
type BusinessDayTemplater struct {
	Hours    []int
	Duration time.Duration
	Location *time.Location
	Notes    []string
}

// NewTemplater returns a BusinessDayTemplater with the default hours,
// 60 minute slots and UTC as the scheduling location.
func NewTemplater() *BusinessDayTemplater {
	return &BusinessDayTemplater{
		Hours:    DefaultSlotHours,
		Duration: 60 * time.Minute,
		Location: time.UTC,
		Notes:    DefaultFormatNotes,
	}
}

// Slots returns perDay slots on each of the next days business days after
// from. perDay is capped at the number of configured hours.
func (t *BusinessDayTemplater) Slots(from time.Time, days, perDay int) []model.SlotOption {
	loc := t.Location
	if loc == nil {
		loc = time.UTC
	}
	if perDay > len(t.Hours) {
		perDay = len(t.Hours)
	}

	local := from.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	var slots []model.SlotOption
	for added := 0; added < days; {
		day = day.AddDate(0, 0, 1)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		for _, h := range t.Hours[:perDay] {
			slots = append(slots, model.SlotOption{
				Start:    time.Date(day.Year(), day.Month(), day.Day(), h, 0, 0, 0, loc),
				Duration: t.Duration,
			})
		}
		added++
	}
	return slots
}

// FormatNotes returns a copy of the configured notes.
func (t *BusinessDayTemplater) FormatNotes() []string {
	return append([]string(nil), t.Notes...)
}
