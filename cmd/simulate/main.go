package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/hackgods/vet-clinic-scheduling/internal/interval"
	"github.com/hackgods/vet-clinic-scheduling/internal/memstore"
	"github.com/hackgods/vet-clinic-scheduling/pkg/logging"
)

// The simulator drives the HTTP API with concurrent workers racing for the
// same slots, then reads every staff schedule back and reports overlaps.

type SimConfig struct {
	APIBaseURL  string
	ClinicID    uuid.UUID
	ServiceID   uuid.UUID
	Date        time.Time
	Duration    time.Duration
	Workers     int
	BookRatio   float64
	CheckRatio  float64
	CancelRatio float64
	ReadRatio   float64
}

type staffSlots struct {
	StaffID   uuid.UUID   `json:"staff_id"`
	StaffName string      `json:"staff_name"`
	Slots     []time.Time `json:"slots"`
}

type slotsResponse struct {
	Slots   []time.Time  `json:"slots"`
	ByStaff []staffSlots `json:"by_staff"`
}

type appointmentResponse struct {
	ID      uuid.UUID  `json:"id"`
	StaffID *uuid.UUID `json:"staff_id"`
	Start   time.Time  `json:"start"`
	End     time.Time  `json:"end"`
	Status  string     `json:"status"`
}

// DataPool is the snapshot of staff slots the workers pick from, plus the
// appointments created so far.
type DataPool struct {
	Staff        []staffSlots
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.IntN(len(dp.appointments))], true
}

func (dp *DataPool) RandomSlot(rng *rand.Rand) (uuid.UUID, time.Time, bool) {
	st := dp.Staff[rng.IntN(len(dp.Staff))]
	if len(st.Slots) == 0 {
		return uuid.Nil, time.Time{}, false
	}
	return st.StaffID, st.Slots[rng.IntN(len(st.Slots))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	lo = latencies[0]
	hi = latencies[len(latencies)-1]
	p50 = latencies[min(len(latencies)*50/100, len(latencies)-1)]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, lo, hi, p50, p95
}

type Metrics struct {
	Book   OperationMetrics
	Check  OperationMetrics
	Cancel OperationMetrics
	Slots  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  *logging.Logger
}

func main() {
	_ = godotenv.Load()
	logger := logging.New(getEnv("LOG_LEVEL", "info")).With("service", "simulate")

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger.Info("simulator starting",
		"clinic_id", cfg.ClinicID,
		"date", cfg.Date.Format(time.DateOnly),
		"duration", cfg.Duration,
		"workers", cfg.Workers,
	)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dataPool, err := sim.loadDataPool(ctx)
	if err != nil {
		logger.Error("load data pool", "error", err)
		os.Exit(1)
	}
	sim.pool = dataPool
	logger.Info("loaded slot snapshot", "staff", len(dataPool.Staff))

	sim.Run()
	sim.PrintReport()

	overlaps, err := sim.verify(context.Background())
	if err != nil {
		logger.Error("verify schedules", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Double bookings: %d\n", overlaps)
	if overlaps > 0 {
		os.Exit(2)
	}
}

func loadConfig() (SimConfig, error) {
	cfg := SimConfig{
		APIBaseURL:  strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 16),
		BookRatio:   getFloat("SIM_BOOK_RATIO", 0.5),
		CheckRatio:  getFloat("SIM_CHECK_RATIO", 0.2),
		CancelRatio: getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:   getFloat("SIM_READ_RATIO", 0.2),
	}

	var err error
	if cfg.ClinicID, err = uuid.Parse(getEnv("SIM_CLINIC_ID", memstore.DemoClinicID.String())); err != nil {
		return cfg, fmt.Errorf("SIM_CLINIC_ID: %w", err)
	}
	if cfg.ServiceID, err = uuid.Parse(getEnv("SIM_SERVICE_ID", memstore.DemoCheckupID.String())); err != nil {
		return cfg, fmt.Errorf("SIM_SERVICE_ID: %w", err)
	}
	if v := os.Getenv("SIM_DATE"); v != "" {
		if cfg.Date, err = time.Parse(time.DateOnly, v); err != nil {
			return cfg, fmt.Errorf("SIM_DATE: %w", err)
		}
	} else {
		cfg.Date = nextWeekday(time.Now().UTC())
	}

	if cfg.Workers <= 0 {
		return cfg, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return cfg, fmt.Errorf("SIM_DURATION must be > 0")
	}

	// Normalize ratios
	total := cfg.BookRatio + cfg.CheckRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookRatio /= total
		cfg.CheckRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg, nil
}

func nextWeekday(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func (s *Simulator) clinicURL(format string, args ...any) string {
	return s.config.APIBaseURL + "/v1/clinics/" + s.config.ClinicID.String() + fmt.Sprintf(format, args...)
}

func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	var resp slotsResponse
	status, err := s.doJSON(ctx, http.MethodGet, s.clinicURL("/slots?date=%s&service_id=%s",
		s.config.Date.Format(time.DateOnly), s.config.ServiceID), nil, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("slots query returned %d", status)
	}
	if len(resp.ByStaff) == 0 {
		return nil, fmt.Errorf("clinic has no active staff")
	}
	return &DataPool{Staff: resp.ByStaff}, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info("starting simulation", "duration", s.config.Duration, "workers", s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.BookRatio:
			s.doBook(ctx, rng)
		case r < s.config.BookRatio+s.config.CheckRatio:
			s.doCheck(ctx, rng)
		case r < s.config.BookRatio+s.config.CheckRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			s.doSlots(ctx)
		}
	}
}

func (s *Simulator) bookBody(rng *rand.Rand) (map[string]any, bool) {
	staffID, start, ok := s.pool.RandomSlot(rng)
	if !ok {
		return nil, false
	}
	return map[string]any{
		"service_id": s.config.ServiceID.String(),
		"staff_id":   staffID.String(),
		"start":      start.Format(time.RFC3339),
	}, true
}

func (s *Simulator) doBook(ctx context.Context, rng *rand.Rand) {
	body, ok := s.bookBody(rng)
	if !ok {
		return
	}

	start := time.Now()
	var appt appointmentResponse
	status, err := s.doJSON(ctx, http.MethodPost, s.clinicURL("/appointments"), body, &appt)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	success := err == nil && status == http.StatusCreated
	if success && appt.ID != uuid.Nil {
		s.pool.AddAppointment(appt.ID)
	}
	s.metrics.Book.Record(latency, success, err == nil && status == http.StatusConflict)
}

func (s *Simulator) doCheck(ctx context.Context, rng *rand.Rand) {
	body, ok := s.bookBody(rng)
	if !ok {
		return
	}

	start := time.Now()
	var resp struct {
		OK bool `json:"ok"`
	}
	status, err := s.doJSON(ctx, http.MethodPost, s.clinicURL("/appointments/check"), body, &resp)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	ok = err == nil && status == http.StatusOK
	s.metrics.Check.Record(latency, ok && resp.OK, ok && !resp.OK)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.doJSON(ctx, http.MethodPost, s.clinicURL("/appointments/%s/status", id),
		map[string]string{"status": "CANCELED"}, nil)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	// Canceling twice is an invalid transition.
	s.metrics.Cancel.Record(latency, err == nil && status == http.StatusOK, err == nil && status == http.StatusConflict)
}

func (s *Simulator) doSlots(ctx context.Context) {
	start := time.Now()
	status, err := s.doJSON(ctx, http.MethodGet, s.clinicURL("/slots?date=%s&service_id=%s",
		s.config.Date.Format(time.DateOnly), s.config.ServiceID), nil, nil)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Slots.Record(latency, err == nil && status == http.StatusOK, false)
}

// verify lists every staff member's appointments for the day and counts
// pairs of non-canceled appointments that overlap.
func (s *Simulator) verify(ctx context.Context) (int, error) {
	overlaps := 0
	for _, st := range s.pool.Staff {
		var appts []appointmentResponse
		status, err := s.doJSON(ctx, http.MethodGet, s.clinicURL("/appointments?date=%s&staff_id=%s",
			s.config.Date.Format(time.DateOnly), st.StaffID), nil, &appts)
		if err != nil {
			return 0, err
		}
		if status != http.StatusOK {
			return 0, fmt.Errorf("list appointments for %s returned %d", st.StaffName, status)
		}

		for i := range appts {
			for j := i + 1; j < len(appts); j++ {
				a := interval.New(appts[i].Start, appts[i].End)
				b := interval.New(appts[j].Start, appts[j].End)
				if a.Overlaps(b) {
					overlaps++
					s.logger.Error("double booking detected",
						"staff", st.StaffName,
						"first", appts[i].ID,
						"second", appts[j].ID,
					)
				}
			}
		}
		fmt.Printf("%-24s %3d appointments\n", st.StaffName, len(appts))
	}
	return overlaps, nil
}

func (s *Simulator) doJSON(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Book", &s.metrics.Book)
	printOperationReport("Check", &s.metrics.Check)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Slots", &s.metrics.Slots)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
