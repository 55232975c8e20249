// Package measurement synthesizes device measurement records.
//
// Records are generated on demand and never persisted. A Generator reseeds its
// PRNG on every call, so two calls with the same arguments return the same
// sequence. Paginated endpoints depend on this to serve consistent slices
// across independent requests.
package measurement

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DeviceCount is the size of the synthetic device pool (device_1..device_5).
const DeviceCount = 5

// Physical ranges for generated sensor readings.
const (
	MinTemperature  = 15.0
	MaxTemperature  = 35.0
	MinHumidity     = 30.0
	MaxHumidity     = 90.0
	MinPressure     = 980.0
	MaxPressure     = 1050.0
	MinBatteryLevel = 10.0
	MaxBatteryLevel = 100.0
)

// BaseTime is the start of the 24h window timestamps are drawn from.
var BaseTime = time.Date(2025, time.June, 18, 0, 0, 0, 0, time.UTC)

// Measurement is a single synthetic sensor reading.
type Measurement struct {
	ID           string    `json:"id"`
	DeviceID     string    `json:"device_id"`
	Timestamp    time.Time `json:"timestamp"`
	Temperature  float64   `json:"temperature"`
	Humidity     float64   `json:"humidity"`
	Pressure     float64   `json:"pressure"`
	BatteryLevel float64   `json:"battery_level"`
}

// Generator produces deterministic-length, randomly valued measurement sequences.
type Generator struct {
	seed uint64
}

// NewGenerator creates a generator whose sequences are fixed by seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{seed: uint64(seed)}
}

// DeviceIDs returns the synthetic device pool.
func DeviceIDs() []string {
	ids := make([]string, DeviceCount)
	for i := range ids {
		ids[i] = fmt.Sprintf("device_%d", i+1)
	}
	return ids
}

// ID returns the stable identifier of the measurement at index i.
func ID(i int) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(fmt.Sprintf("measurement-%d", i))).String()
}

// Generate produces count measurements sorted newest first. A non-empty
// deviceID keeps only that device's records, so the result may be shorter
// than count.
func (g *Generator) Generate(count int, deviceID string) []Measurement {
	if count <= 0 {
		return []Measurement{}
	}

	rng := rand.New(rand.NewPCG(g.seed, g.seed^0x9e3779b97f4a7c15))
	devices := DeviceIDs()

	all := make([]Measurement, count)
	for i := range all {
		minutes := rng.IntN(24*60 + 1)
		all[i] = Measurement{
			ID:           ID(i),
			DeviceID:     devices[rng.IntN(len(devices))],
			Timestamp:    BaseTime.Add(time.Duration(minutes) * time.Minute),
			Temperature:  uniform(rng, MinTemperature, MaxTemperature),
			Humidity:     uniform(rng, MinHumidity, MaxHumidity),
			Pressure:     uniform(rng, MinPressure, MaxPressure),
			BatteryLevel: uniform(rng, MinBatteryLevel, MaxBatteryLevel),
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})

	if deviceID == "" {
		return all
	}

	filtered := make([]Measurement, 0, count/DeviceCount+1)
	for _, m := range all {
		if m.DeviceID == deviceID {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

// uniform draws from [lo, hi] rounded to two decimals.
func uniform(rng *rand.Rand, lo, hi float64) float64 {
	v := lo + rng.Float64()*(hi-lo)
	return math.Round(v*100) / 100
}
