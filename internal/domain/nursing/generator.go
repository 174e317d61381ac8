package nursing

import (
	"bytes"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/medcore/hms/internal/platform/apperr"
)

const (
	defaultMaxNights = 3
	maxRosterDays    = 62
)

// GenerateRequest describes a roster to build. From and To are calendar
// days, both inclusive.
type GenerateRequest struct {
	NurseIDs             []uuid.UUID    `json:"nurse_ids"`
	From                 time.Time      `json:"from"`
	To                   time.Time      `json:"to"`
	PerShift             map[string]int `json:"per_shift"`
	MaxConsecutiveNights int            `json:"max_consecutive_nights"`
	Seed                 int64          `json:"seed"`
	DepartmentID         *uuid.UUID     `json:"department_id,omitempty"`
}

// Gap is a shift slot the generator could not fill.
type Gap struct {
	Date      string `json:"date"`
	ShiftType string `json:"shift_type"`
	Missing   int    `json:"missing"`
}

type Roster struct {
	Shifts   []*Shift `json:"shifts"`
	Unfilled []Gap    `json:"unfilled"`
	Seed     int64    `json:"seed"`
}

func (r GenerateRequest) validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return apperr.Invalid("from and to are required")
	}
	if r.To.Before(r.From) {
		return apperr.Invalid("to is before from")
	}
	if days := int(r.To.Sub(r.From).Hours()/24) + 1; days > maxRosterDays {
		return apperr.Invalid("roster spans %d days, at most %d allowed", days, maxRosterDays)
	}
	if len(r.PerShift) == 0 {
		return apperr.Invalid("per_shift headcount is required")
	}
	for t, n := range r.PerShift {
		if !validShiftType(t) {
			return apperr.Invalid("unknown shift type %q", t)
		}
		if n < 0 {
			return apperr.Invalid("headcount for %s cannot be negative", t)
		}
	}
	if r.MaxConsecutiveNights < 0 {
		return apperr.Invalid("max_consecutive_nights cannot be negative")
	}
	return nil
}

type nurseState struct {
	id        uuid.UUID
	load      int
	lastNight string
	nights    int
	busy      []*Shift
}

func (n *nurseState) recordNight(day, prevDay string) {
	if n.lastNight == prevDay {
		n.nights++
	} else {
		n.nights = 1
	}
	n.lastNight = day
}

func (n *nurseState) free(start, end time.Time) bool {
	for _, s := range n.busy {
		if s.overlaps(start, end) {
			return false
		}
	}
	return true
}

// Generate builds a random roster for the given nurses. Existing shifts are
// respected: nobody is double-booked against them. For the same inputs and
// seed the roster is always the same.
//
// Each nurse works at most one shift per calendar day and never more than
// MaxConsecutiveNights nights in a row. Slots that cannot be filled under
// those rules are reported in Unfilled rather than failing the whole roster.
func Generate(req GenerateRequest, nurses []uuid.UUID, existing []*Shift, loc *time.Location) (*Roster, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if len(nurses) == 0 {
		return nil, apperr.Invalid("no nurses to schedule")
	}
	maxNights := req.MaxConsecutiveNights
	if maxNights == 0 {
		maxNights = defaultMaxNights
	}

	ids := append([]uuid.UUID(nil), nurses...)
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })

	states := make(map[uuid.UUID]*nurseState, len(ids))
	order := make([]*nurseState, 0, len(ids))
	for _, id := range ids {
		if _, dup := states[id]; dup {
			continue
		}
		st := &nurseState{id: id}
		states[id] = st
		order = append(order, st)
	}
	from := time.Date(req.From.Year(), req.From.Month(), req.From.Day(), 0, 0, 0, 0, loc)
	to := time.Date(req.To.Year(), req.To.Month(), req.To.Day(), 0, 0, 0, 0, loc)
	fromKey := dayKey(from)

	prior := append([]*Shift(nil), existing...)
	sort.SliceStable(prior, func(i, j int) bool { return prior[i].StartsAt.Before(prior[j].StartsAt) })
	worked := make(map[string]map[uuid.UUID]bool)
	for _, s := range prior {
		st, ok := states[s.NurseID]
		if !ok {
			continue
		}
		st.busy = append(st.busy, s)
		day := dayKey(s.ShiftDate)
		if worked[day] == nil {
			worked[day] = make(map[uuid.UUID]bool)
		}
		worked[day][s.NurseID] = true
		if s.ShiftType == ShiftNight && day < fromKey {
			st.recordNight(day, dayKey(s.ShiftDate.AddDate(0, 0, -1)))
		}
	}

	rng := rand.New(rand.NewSource(req.Seed))
	roster := &Roster{Shifts: []*Shift{}, Unfilled: []Gap{}, Seed: req.Seed}

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		key := dayKey(day)
		prevKey := dayKey(day.AddDate(0, 0, -1))
		if worked[key] == nil {
			worked[key] = make(map[uuid.UUID]bool)
		}

		for _, shiftType := range ShiftTypes {
			need := req.PerShift[shiftType]
			if need == 0 {
				continue
			}
			start, end := ShiftBounds(day, shiftType, loc)

			candidates := make([]*nurseState, 0, len(order))
			for _, st := range order {
				if worked[key][st.id] || !st.free(start, end) {
					continue
				}
				if shiftType == ShiftNight && st.lastNight == prevKey && st.nights >= maxNights {
					continue
				}
				candidates = append(candidates, st)
			}
			rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
			// Least-loaded first; the shuffle breaks ties.
			sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].load < candidates[j].load })

			take := need
			if take > len(candidates) {
				roster.Unfilled = append(roster.Unfilled, Gap{Date: key, ShiftType: shiftType, Missing: need - len(candidates)})
				take = len(candidates)
			}
			for _, st := range candidates[:take] {
				s := &Shift{
					NurseID:      st.id,
					DepartmentID: req.DepartmentID,
					ShiftDate:    time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
					ShiftType:    shiftType,
					StartsAt:     start,
					EndsAt:       end,
				}
				st.busy = append(st.busy, s)
				st.load++
				if shiftType == ShiftNight {
					st.recordNight(key, prevKey)
				}
				worked[key][st.id] = true
				roster.Shifts = append(roster.Shifts, s)
			}
		}
	}
	return roster, nil
}

// dayKey formats a calendar day. Days built in loc and DATE columns read
// back as UTC midnight both format to their own date.
func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
