package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careroute/triage-booking/internal/config"
	"github.com/careroute/triage-booking/internal/db"
)

// Load generator for the booking API. Many workers race bookings into the
// same department/date window, then the tool checks Postgres for the one
// thing that must never happen: two live appointments on one slot.

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	SymptomRatio float64
	Departments  []string
	DaysAhead    int
	PostgresDSN  string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))

	p50 = latencies[len(latencies)*50/100]
	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]
	return avg, p50, p95
}

type Simulator struct {
	config   SimConfig
	client   *http.Client
	bookings OperationMetrics
	symptoms OperationMetrics
}

var symptomSamples = []struct {
	text string
	lang string
}{
	{"chest pain and shortness of breath", "en"},
	{"stomach pain after eating", "en"},
	{"dolor de cabeza constante", "es"},
	{"पेट दर्द और उल्टी", "hi"},
	{"కడుపు నొప్పి", "te"},
	{"mal de dos après une chute", "fr"},
	{"my child has a fever", "en"},
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadSimConfig()
	log.Printf("config: duration=%s workers=%d departments=%v", cfg.Duration, cfg.Workers, cfg.Departments)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.Run()
	sim.PrintReport()

	if cfg.PostgresDSN != "" {
		if err := verifyNoDoubleBooking(cfg.PostgresDSN); err != nil {
			log.Fatalf("INVARIANT VIOLATION: %v", err)
		}
		log.Println("invariant check passed: no slot has more than one live appointment")
	}
}

func (s *Simulator) Run() {
	deadline := time.Now().Add(s.config.Duration)

	var wg sync.WaitGroup
	for w := 0; w < s.config.Workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)))
			for time.Now().Before(deadline) {
				if rng.Float64() < s.config.SymptomRatio {
					s.checkSymptom(rng)
				} else {
					s.book(rng)
				}
			}
		}(w)
	}
	wg.Wait()
}

func (s *Simulator) book(rng *rand.Rand) {
	dept := s.config.Departments[rng.Intn(len(s.config.Departments))]
	date := time.Now().UTC().AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead)).Format("2006-01-02")

	payload := map[string]any{
		"patient_identifier": "sim-patient-" + strconv.Itoa(rng.Intn(5000)),
		"department":         dept,
		"preferred_date":     date,
		"idempotency_key":    uuid.NewString(),
	}

	status, latency := s.post("/v1/appointments", payload)
	s.bookings.Record(latency, status)
}

func (s *Simulator) checkSymptom(rng *rand.Rand) {
	sample := symptomSamples[rng.Intn(len(symptomSamples))]

	payload := map[string]any{
		"symptom":  sample.text,
		"language": sample.lang,
	}

	status, latency := s.post("/v1/symptom-checks", payload)
	s.symptoms.Record(latency, status)
}

func (s *Simulator) post(path string, payload map[string]any) (int, time.Duration) {
	body, _ := json.Marshal(payload)

	start := time.Now()
	resp, err := s.client.Post(s.config.APIBaseURL+path, "application/json", bytes.NewReader(body))
	latency := time.Since(start)
	if err != nil {
		return 0, latency
	}
	defer resp.Body.Close()
	return resp.StatusCode, latency
}

func (s *Simulator) PrintReport() {
	report := func(name string, om *OperationMetrics) {
		avg, p50, p95 := om.Stats()
		fmt.Printf("%-15s total=%d success=%d conflict=%d error=%d avg=%s p50=%s p95=%s\n",
			name, om.Total, om.Success, om.Conflict, om.Error, avg, p50, p95)
	}

	fmt.Println("=== simulation report ===")
	report("bookings", &s.bookings)
	report("symptom-checks", &s.symptoms)
}

// verifyNoDoubleBooking queries for slots referenced by more than one
// non-cancelled appointment. Any row here means the engine is broken.
func verifyNoDoubleBooking(dsn string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, 0)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	return checkDoubleBookings(ctx, pool)
}

func checkDoubleBookings(ctx context.Context, pool *pgxpool.Pool) error {
	rows, err := pool.Query(ctx, `
		SELECT slot_id, COUNT(*)
		FROM appointments
		WHERE status = 'booked'
		GROUP BY slot_id
		HAVING COUNT(*) > 1
	`)
	if err != nil {
		return fmt.Errorf("query double bookings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var slotID uuid.UUID
		var count int
		if err := rows.Scan(&slotID, &count); err != nil {
			return err
		}
		return fmt.Errorf("slot %s has %d live appointments", slotID, count)
	}
	return rows.Err()
}

func loadSimConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		SymptomRatio: getFloat("SIM_SYMPTOM_RATIO", 0.3),
		DaysAhead:    getInt("SIM_DAYS_AHEAD", 3),
		PostgresDSN:  baseCfg.PostgresDSN,
	}

	depts := os.Getenv("SIM_DEPARTMENTS")
	if depts == "" {
		cfg.Departments = []string{"cardiology", "general-medicine", "pediatrics"}
	} else {
		cfg.Departments = strings.Split(depts, ",")
	}

	if cfg.Workers <= 0 {
		log.Fatal("SIM_WORKERS must be > 0")
	}
	if cfg.DaysAhead <= 0 {
		cfg.DaysAhead = 1
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
