package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/vet-clinic-scheduling/internal/clinic"
	"github.com/hackgods/vet-clinic-scheduling/internal/config"
	"github.com/hackgods/vet-clinic-scheduling/internal/db"
	"github.com/hackgods/vet-clinic-scheduling/internal/memstore"
	"github.com/hackgods/vet-clinic-scheduling/pkg/logging"
)

var timezones = []string{
	"UTC",
	"America/Sao_Paulo",
	"America/New_York",
	"Europe/Lisbon",
	"Asia/Colombo",
}

var serviceCatalog = []struct {
	name    string
	minutes int
	price   int
	deposit bool
}{
	{"Checkup", 30, 5000, false},
	{"Vaccination", 15, 3500, false},
	{"Dental Cleaning", 60, 18000, true},
	{"Surgery Consult", 45, 9000, true},
	{"Home Visit", 90, 15000, true},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel).With("service", "seed")

	if cfg.PostgresDSN == "" {
		logger.Error("POSTGRES_DSN is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	seed := uint64(time.Now().UnixNano())
	if v := os.Getenv("SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			seed = n
		}
	}
	faker := gofakeit.New(seed)

	clinics := 3
	if v := os.Getenv("SEED_CLINICS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			clinics = n
		}
	}

	if err := seedDemoClinic(context.Background(), pool); err != nil {
		logger.Error("seed demo clinic", "error", err)
		os.Exit(1)
	}
	logger.Info("demo clinic seeded", "clinic_id", memstore.DemoClinicID)

	for i := 0; i < clinics; i++ {
		id, err := seedClinic(context.Background(), pool, faker)
		if err != nil {
			logger.Error("seed clinic", "error", err)
			os.Exit(1)
		}
		logger.Info("clinic seeded", "clinic_id", id, "n", i+1, "of", clinics)
	}

	logger.Info("seed complete", "seed", seed)
}

// seedDemoClinic writes the same fixed clinic the in-memory store serves so
// clients can switch drivers without changing identifiers.
func seedDemoClinic(ctx context.Context, pool *pgxpool.Pool) error {
	store := memstore.New()
	store.SeedDemo()
	repo := store.Clinics()

	c, err := repo.GetClinic(ctx, memstore.DemoClinicID)
	if err != nil {
		return err
	}
	staff, err := repo.ListStaff(ctx, c.ID, false)
	if err != nil {
		return err
	}

	var services []clinic.Service
	for _, id := range []uuid.UUID{memstore.DemoCheckupID, memstore.DemoVaccineID} {
		svc, err := repo.GetService(ctx, c.ID, id)
		if err != nil {
			return err
		}
		services = append(services, *svc)
	}
	var resources []clinic.Resource
	for _, id := range []uuid.UUID{memstore.DemoRoomID, memstore.DemoVanID} {
		res, err := repo.GetResource(ctx, c.ID, id)
		if err != nil {
			return err
		}
		resources = append(resources, *res)
	}

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM clinics WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return nil
		}
		return insertClinic(ctx, tx, *c, staff, resources, services)
	})
}

func seedClinic(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker) (uuid.UUID, error) {
	name := faker.LastName() + " " + faker.RandomString([]string{"Veterinary", "Animal Hospital", "Pet Clinic", "Vet Care"})
	c := clinic.Clinic{
		ID:       uuid.New(),
		Slug:     slugify(name) + "-" + strconv.Itoa(faker.Number(100, 999)),
		Name:     name,
		Timezone: faker.RandomString(timezones),
		Hours:    randomHours(faker),
	}

	year := time.Now().Year()
	for _, h := range []struct {
		name  string
		month time.Month
		day   int
	}{{"New Year", time.January, 1}, {"Christmas", time.December, 25}} {
		for _, y := range []int{year, year + 1} {
			c.Holidays = append(c.Holidays, clinic.Holiday{
				ID:   uuid.New(),
				Name: h.name,
				Date: time.Date(y, h.month, h.day, 0, 0, 0, 0, time.UTC).Format(time.DateOnly),
			})
		}
	}

	var staff []clinic.Staff
	vets := faker.Number(2, 5)
	for i := 0; i < vets; i++ {
		staff = append(staff, clinic.Staff{ID: uuid.New(), Name: "Dr. " + faker.Name(), Role: clinic.RoleVet, Active: true})
	}
	nurses := faker.Number(1, 3)
	for i := 0; i < nurses; i++ {
		staff = append(staff, clinic.Staff{ID: uuid.New(), Name: faker.Name(), Role: clinic.RoleNurse, Active: true})
	}
	if faker.Bool() {
		staff = append(staff, clinic.Staff{ID: uuid.New(), Name: faker.Name(), Role: clinic.RoleDriver, Active: true})
	}

	var resources []clinic.Resource
	rooms := faker.Number(1, 4)
	for i := 1; i <= rooms; i++ {
		resources = append(resources, clinic.Resource{ID: uuid.New(), Name: fmt.Sprintf("Exam Room %d", i), Type: clinic.ResourceRoom, Active: true})
	}
	resources = append(resources, clinic.Resource{ID: uuid.New(), Name: "Mobile Unit", Type: clinic.ResourceVehicle, Active: true})

	var services []clinic.Service
	for _, s := range serviceCatalog {
		svc := clinic.Service{ID: uuid.New(), Name: s.name, DurationMinutes: s.minutes, PriceCents: s.price, Active: true}
		if s.deposit {
			d := s.price / 5
			svc.DepositCents = &d
		}
		services = append(services, svc)
	}

	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		return insertClinic(ctx, tx, c, staff, resources, services)
	})
	return c.ID, err
}

// randomHours opens Monday to Friday, sometimes with a lunch break, and
// sometimes on Saturday morning.
func randomHours(faker *gofakeit.Faker) clinic.WeeklyHours {
	open := fmt.Sprintf("%02d:00", faker.Number(7, 9))
	closeAt := fmt.Sprintf("%02d:00", faker.Number(17, 20))

	day := []clinic.DayHours{{Open: open, Close: closeAt}}
	if faker.Bool() {
		day = []clinic.DayHours{{Open: open, Close: "12:00"}, {Open: "13:00", Close: closeAt}}
	}

	hours := clinic.WeeklyHours{}
	for wd := time.Monday; wd <= time.Friday; wd++ {
		hours[wd] = day
	}
	if faker.Bool() {
		hours[time.Saturday] = []clinic.DayHours{{Open: "09:00", Close: "13:00"}}
	}
	return hours
}

func insertClinic(ctx context.Context, tx pgx.Tx, c clinic.Clinic, staff []clinic.Staff, resources []clinic.Resource, services []clinic.Service) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO clinics (id, slug, name, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
	`, c.ID, c.Slug, c.Name, c.Timezone); err != nil {
		return fmt.Errorf("insert clinic: %w", err)
	}

	for wd, windows := range c.Hours {
		for _, w := range windows {
			if _, err := tx.Exec(ctx, `
				INSERT INTO clinic_hours (clinic_id, weekday, open_time, close_time)
				VALUES ($1, $2, $3, $4)
			`, c.ID, int(wd), w.Open, w.Close); err != nil {
				return fmt.Errorf("insert hours: %w", err)
			}
		}
	}

	for _, h := range c.Holidays {
		if _, err := tx.Exec(ctx, `
			INSERT INTO clinic_holidays (id, clinic_id, name, holiday_on)
			VALUES ($1, $2, $3, $4::date)
		`, h.ID, c.ID, h.Name, h.Date); err != nil {
			return fmt.Errorf("insert holiday: %w", err)
		}
	}

	for _, s := range staff {
		if _, err := tx.Exec(ctx, `
			INSERT INTO staff (id, clinic_id, name, role, active)
			VALUES ($1, $2, $3, $4, $5)
		`, s.ID, c.ID, s.Name, string(s.Role), s.Active); err != nil {
			return fmt.Errorf("insert staff: %w", err)
		}
	}

	for _, r := range resources {
		if _, err := tx.Exec(ctx, `
			INSERT INTO resources (id, clinic_id, name, type, active)
			VALUES ($1, $2, $3, $4, $5)
		`, r.ID, c.ID, r.Name, string(r.Type), r.Active); err != nil {
			return fmt.Errorf("insert resource: %w", err)
		}
	}

	for _, s := range services {
		if _, err := tx.Exec(ctx, `
			INSERT INTO services (id, clinic_id, name, duration_minutes, price_cents, deposit_cents, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, s.ID, c.ID, s.Name, s.DurationMinutes, s.PriceCents, s.DepositCents, s.Active); err != nil {
			return fmt.Errorf("insert service: %w", err)
		}
	}
	return nil
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
