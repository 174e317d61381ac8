package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medcore/hms/internal/config"
	"github.com/medcore/hms/internal/domain/appointment"
	"github.com/medcore/hms/internal/domain/nursing"
	"github.com/medcore/hms/internal/domain/patient"
	"github.com/medcore/hms/internal/platform/db"
	"github.com/medcore/hms/internal/platform/websocket"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with generated data",
	}
	cmd.AddCommand(seedShiftsCmd())
	cmd.AddCommand(seedQueueCmd())
	return cmd
}

// withServices opens a pool and builds the domain services without the
// live event hub or metrics.
func withServices(fn func(ctx context.Context, svcs *services, loc *time.Location, logger zerolog.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, buildServices(pool, cfg, loc, logger, websocket.NopPublisher{}, nil), loc, logger)
}

func seedShiftsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shifts",
		Short: "Generate a random nurse roster for a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			fromStr, _ := cmd.Flags().GetString("from")
			toStr, _ := cmd.Flags().GetString("to")
			perShiftStr, _ := cmd.Flags().GetString("per-shift")
			maxNights, _ := cmd.Flags().GetInt("max-nights")
			seed, _ := cmd.Flags().GetInt64("seed")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			from, err := time.Parse("2006-01-02", fromStr)
			if err != nil {
				return fmt.Errorf("--from must be YYYY-MM-DD: %w", err)
			}
			to, err := time.Parse("2006-01-02", toStr)
			if err != nil {
				return fmt.Errorf("--to must be YYYY-MM-DD: %w", err)
			}
			perShift, err := parsePerShift(perShiftStr)
			if err != nil {
				return err
			}
			if seed == 0 {
				seed = time.Now().UnixNano()
			}

			req := nursing.GenerateRequest{
				From:                 from,
				To:                   to,
				PerShift:             perShift,
				MaxConsecutiveNights: maxNights,
				Seed:                 seed,
			}
			return withServices(func(ctx context.Context, svcs *services, _ *time.Location, _ zerolog.Logger) error {
				roster, err := svcs.nursing.GenerateShifts(ctx, req, dryRun)
				if err != nil {
					return err
				}
				verb := "Created"
				if dryRun {
					verb = "Planned"
				}
				fmt.Printf("%s %d shift(s) with seed %d.\n", verb, len(roster.Shifts), roster.Seed)
				for _, g := range roster.Unfilled {
					fmt.Fprintf(os.Stderr, "unfilled: %s %-7s missing %d\n", g.Date, g.ShiftType, g.Missing)
				}
				return nil
			})
		},
	}
	cmd.Flags().String("from", "", "First day of the roster (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Last day of the roster (YYYY-MM-DD)")
	cmd.Flags().String("per-shift", "morning=2,evening=2,night=1", "Nurses needed per shift type")
	cmd.Flags().Int("max-nights", 3, "Maximum consecutive night shifts per nurse")
	cmd.Flags().Int64("seed", 0, "Random seed (defaults to the current time)")
	cmd.Flags().Bool("dry-run", false, "Print the outcome without storing shifts")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// parsePerShift reads "morning=2,evening=2,night=1".
func parsePerShift(v string) (map[string]int, error) {
	out := make(map[string]int)
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, count, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("per-shift entry %q must be type=count", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("per-shift count for %q must be a non-negative integer", name)
		}
		out[strings.ToLower(strings.TrimSpace(name))] = n
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("per-shift is empty")
	}
	return out, nil
}

func seedQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Book and check in demo patients for a doctor's queue today",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorStr, _ := cmd.Flags().GetString("doctor")
			count, _ := cmd.Flags().GetInt("patients")
			start, _ := cmd.Flags().GetString("start")
			interval, _ := cmd.Flags().GetDuration("interval")

			doctorID, err := uuid.Parse(doctorStr)
			if err != nil {
				return fmt.Errorf("--doctor must be a uuid: %w", err)
			}

			return withServices(func(ctx context.Context, svcs *services, loc *time.Location, logger zerolog.Logger) error {
				slots, err := queueSlots(time.Now().In(loc), start, interval, count)
				if err != nil {
					return err
				}
				for i, at := range slots {
					p := &patient.Patient{FirstName: "Demo", LastName: fmt.Sprintf("Patient %02d", i+1)}
					if err := svcs.patients.Register(ctx, p); err != nil {
						return fmt.Errorf("register demo patient: %w", err)
					}
					a := &appointment.Appointment{
						PatientID:       p.ID,
						DoctorID:        doctorID,
						AppointmentDate: at,
						Status:          appointment.StatusConfirmed,
					}
					if err := svcs.appointments.Create(ctx, a); err != nil {
						return fmt.Errorf("book %s: %w", at.Format("15:04"), err)
					}
					checked, err := svcs.appointments.CheckIn(ctx, a.ID)
					if err != nil {
						return fmt.Errorf("check in %s: %w", p.MRN, err)
					}
					logger.Info().Str("mrn", p.MRN).Int("queue_number", *checked.QueueNumber).
						Time("appointment_date", at).Msg("queued demo patient")
				}
				fmt.Printf("Queued %d patient(s) for doctor %s.\n", len(slots), doctorID)
				return nil
			})
		},
	}
	cmd.Flags().String("doctor", "", "Doctor id")
	cmd.Flags().Int("patients", 5, "Number of demo patients")
	cmd.Flags().String("start", "09:00", "Time of the first appointment (HH:MM)")
	cmd.Flags().Duration("interval", 15*time.Minute, "Time between appointments")
	_ = cmd.MarkFlagRequired("doctor")
	return cmd
}

// queueSlots returns n appointment times on the day of now, starting at
// start ("HH:MM") in now's location.
func queueSlots(now time.Time, start string, interval time.Duration, n int) ([]time.Time, error) {
	if n <= 0 || n > 100 {
		return nil, fmt.Errorf("patients must be between 1 and 100, got %d", n)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	hm, err := time.Parse("15:04", start)
	if err != nil {
		return nil, fmt.Errorf("start must be HH:MM: %w", err)
	}
	first := time.Date(now.Year(), now.Month(), now.Day(), hm.Hour(), hm.Minute(), 0, 0, now.Location())
	slots := make([]time.Time, n)
	for i := range slots {
		slots[i] = first.Add(time.Duration(i) * interval)
	}
	if last := slots[n-1]; last.Day() != first.Day() {
		return nil, fmt.Errorf("queue runs past midnight; reduce patients or interval")
	}
	return slots, nil
}
