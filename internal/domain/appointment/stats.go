package appointment

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AppointmentRecord is the read model the statistics are computed from. The
// optional relations are resolved by the repository; a nil pointer means the
// relation is absent. A zero AppointmentDate marks a date that could not be
// read and keeps the record out of every date bucket.
type AppointmentRecord struct {
	ID              uuid.UUID     `json:"id"`
	AppointmentDate time.Time     `json:"appointmentDate"`
	Status          string        `json:"appointmentStatus"`
	Patient         *PatientRef   `json:"patient,omitempty"`
	Doctor          *DoctorRef    `json:"doctor,omitempty"`
	VisitType       *VisitTypeRef `json:"visitType,omitempty"`
}

type PatientRef struct {
	ID uuid.UUID `json:"id"`
}

type DoctorRef struct {
	ID         uuid.UUID      `json:"id"`
	FirstName  string         `json:"firstName"`
	LastName   string         `json:"lastName"`
	Department *DepartmentRef `json:"department,omitempty"`
}

type DepartmentRef struct {
	Name string `json:"name"`
}

type VisitTypeRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

type SlotCount struct {
	Slot  string `json:"slot"`
	Count int    `json:"count"`
}

// StatsSummary is the dashboard payload. Every slice is non-nil so it always
// encodes as a JSON array.
type StatsSummary struct {
	Pending           int `json:"pending"`
	Confirmed         int `json:"confirmed"`
	Cancelled         int `json:"cancelled"`
	Completed         int `json:"completed"`
	TotalAppointments int `json:"totalAppointments"`

	TodayAppointments     int `json:"todayAppointments"`
	ThisWeekAppointments  int `json:"thisWeekAppointments"`
	ThisMonthAppointments int `json:"thisMonthAppointments"`

	TopDepartments []NameCount `json:"topDepartments"`
	TopVisitTypes  []NameCount `json:"topVisitTypes"`
	TopDoctors     []NameCount `json:"topDoctors"`

	CompletionRate   float64 `json:"completionRate"`
	CancellationRate float64 `json:"cancellationRate"`

	MonthlyTrend         []MonthCount `json:"monthlyTrend"`
	WeeklyDistribution   []DayCount   `json:"weeklyDistribution"`
	TimeSlotDistribution []SlotCount  `json:"timeSlotDistribution"`

	MonthTrend float64 `json:"monthTrend"`
	WeekTrend  float64 `json:"weekTrend"`
}

const (
	topN         = 5
	unknownLabel = "Unknown"
	trendMonths  = 12
	weekSpan     = 7 * 24 * time.Hour
)

var timeSlots = [...]struct {
	label    string
	from, to int
}{
	{"Early Morning (12-6 AM)", 0, 6},
	{"Morning (6-12 PM)", 6, 12},
	{"Afternoon (12-5 PM)", 12, 17},
	{"Evening (5-11 PM)", 17, 24},
}

// StatsAggregator turns appointment records into a StatsSummary. Calendar
// boundaries (midnight, first of month, weekday, hour) are taken in loc.
// It holds no mutable state and is safe for concurrent use.
type StatsAggregator struct {
	loc *time.Location
	now func() time.Time
}

func NewStatsAggregator(loc *time.Location) *StatsAggregator {
	if loc == nil {
		loc = time.Local
	}
	return &StatsAggregator{loc: loc, now: time.Now}
}

// ComputeStats aggregates records relative to now, in now's location.
func ComputeStats(records []AppointmentRecord, now time.Time) StatsSummary {
	return computeStats(records, now, now.Location())
}

func (a *StatsAggregator) Compute(records []AppointmentRecord) StatsSummary {
	return computeStats(records, a.now(), a.loc)
}

func computeStats(records []AppointmentRecord, now time.Time, loc *time.Location) StatsSummary {
	now = now.In(loc)
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)
	monthStart := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	weekStart := now.Add(-weekSpan)
	prevWeekStart := now.Add(-2 * weekSpan)

	var (
		s         StatsSummary
		depts     = newTally()
		visits    = newTally()
		doctors   = newTally()
		weekdays  [7]int
		slots     [len(timeSlots)]int
		monthly   [trendMonths]int
		priorWeek int
	)

	for i := range records {
		r := &records[i]
		s.TotalAppointments++

		switch normalizeStatus(r.Status) {
		case StatusPending:
			s.Pending++
		case StatusConfirmed:
			s.Confirmed++
		case StatusCancelled:
			s.Cancelled++
		case StatusCompleted:
			s.Completed++
		}

		depts.add(departmentLabel(r.Doctor))
		visits.add(visitTypeLabel(r.VisitType))
		if r.Doctor != nil {
			doctors.add(doctorLabel(r.Doctor))
		}

		if r.AppointmentDate.IsZero() {
			continue
		}
		at := r.AppointmentDate.In(loc)

		if !at.Before(today) {
			s.TodayAppointments++
		}
		if !at.Before(weekStart) {
			s.ThisWeekAppointments++
		} else if !at.Before(prevWeekStart) {
			priorWeek++
		}
		if !at.Before(monthStart) {
			s.ThisMonthAppointments++
		}

		weekdays[at.Weekday()]++
		slots[slotIndex(at.Hour())]++
		if back := monthsBetween(at, now); back >= 0 && back < trendMonths {
			monthly[back]++
		}
	}

	s.TopDepartments = depts.top(topN)
	s.TopVisitTypes = visits.top(topN)
	s.TopDoctors = doctors.top(topN)

	s.CompletionRate = percent(s.Completed, s.TotalAppointments)
	s.CancellationRate = percent(s.Cancelled, s.TotalAppointments)

	s.WeeklyDistribution = make([]DayCount, 0, len(weekdays))
	for wd, n := range weekdays {
		s.WeeklyDistribution = append(s.WeeklyDistribution, DayCount{Day: time.Weekday(wd).String(), Count: n})
	}

	s.MonthlyTrend = make([]MonthCount, 0, trendMonths)
	for back := trendMonths - 1; back >= 0; back-- {
		label := time.Date(y, m-time.Month(back), 1, 0, 0, 0, 0, loc).Month().String()[:3]
		s.MonthlyTrend = append(s.MonthlyTrend, MonthCount{Month: label, Count: monthly[back]})
	}

	s.TimeSlotDistribution = make([]SlotCount, 0, len(timeSlots))
	for i, n := range slots {
		if n > 0 {
			s.TimeSlotDistribution = append(s.TimeSlotDistribution, SlotCount{Slot: timeSlots[i].label, Count: n})
		}
	}

	s.MonthTrend = change(monthly[0], monthly[1])
	s.WeekTrend = change(s.ThisWeekAppointments, priorWeek)
	return s
}

// normalizeStatus lower-cases the status and treats an empty one as pending.
// Anything else is returned as-is and ends up in no bucket.
func normalizeStatus(status string) string {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return StatusPending
	}
	return status
}

func departmentLabel(d *DoctorRef) string {
	if d == nil || d.Department == nil {
		return unknownLabel
	}
	return nameOrUnknown(d.Department.Name)
}

func visitTypeLabel(v *VisitTypeRef) string {
	if v == nil {
		return unknownLabel
	}
	return nameOrUnknown(v.Name)
}

func nameOrUnknown(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return unknownLabel
	}
	return name
}

func doctorLabel(d *DoctorRef) string {
	name := strings.TrimSpace(d.FirstName + " " + d.LastName)
	if name == "" {
		return unknownLabel
	}
	return name
}

func slotIndex(hour int) int {
	for i, ts := range timeSlots {
		if hour >= ts.from && hour < ts.to {
			return i
		}
	}
	return len(timeSlots) - 1
}

// monthsBetween counts calendar months from at to now; negative when at is
// in a later month.
func monthsBetween(at, now time.Time) int {
	return (now.Year()*12 + int(now.Month())) - (at.Year()*12 + int(at.Month()))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(part) / float64(total) * 100)
}

func change(current, prior int) float64 {
	if prior == 0 {
		return 0
	}
	return round1(float64(current-prior) / float64(prior) * 100)
}

// tally counts labels and remembers the order they were first seen in, which
// is the tie-break for equal counts.
type tally struct {
	order  []string
	counts map[string]int
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(label string) {
	if _, ok := t.counts[label]; !ok {
		t.order = append(t.order, label)
	}
	t.counts[label]++
}

func (t *tally) top(n int) []NameCount {
	out := make([]NameCount, 0, len(t.order))
	for _, label := range t.order {
		out = append(out, NameCount{Name: label, Count: t.counts[label]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
