package measurement

import (
	"reflect"
	"testing"
	"time"
)

func TestGenerate_Count(t *testing.T) {
	g := NewGenerator(42)

	tests := []struct {
		name  string
		count int
		want  int
	}{
		{name: "zero", count: 0, want: 0},
		{name: "negative", count: -3, want: 0},
		{name: "one", count: 1, want: 1},
		{name: "hundred", count: 100, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.Generate(tt.count, "")
			if len(got) != tt.want {
				t.Errorf("len(Generate(%d)) = %d, want %d", tt.count, len(got), tt.want)
			}
		})
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a := NewGenerator(42).Generate(50, "")
	b := NewGenerator(42).Generate(50, "")

	if !reflect.DeepEqual(a, b) {
		t.Error("same seed produced different sequences")
	}

	c := NewGenerator(7).Generate(50, "")
	if reflect.DeepEqual(a, c) {
		t.Error("different seeds produced identical sequences")
	}
}

func TestGenerate_UniqueIDsAndRanges(t *testing.T) {
	ms := NewGenerator(42).Generate(500, "")

	seen := make(map[string]bool, len(ms))
	devices := make(map[string]bool)
	for _, id := range DeviceIDs() {
		devices[id] = true
	}

	for i, m := range ms {
		if seen[m.ID] {
			t.Fatalf("duplicate id %s", m.ID)
		}
		seen[m.ID] = true

		if !devices[m.DeviceID] {
			t.Errorf("item %d: unexpected device %q", i, m.DeviceID)
		}
		if m.Temperature < MinTemperature || m.Temperature > MaxTemperature {
			t.Errorf("item %d: temperature %v out of range", i, m.Temperature)
		}
		if m.Humidity < MinHumidity || m.Humidity > MaxHumidity {
			t.Errorf("item %d: humidity %v out of range", i, m.Humidity)
		}
		if m.Pressure < MinPressure || m.Pressure > MaxPressure {
			t.Errorf("item %d: pressure %v out of range", i, m.Pressure)
		}
		if m.BatteryLevel < MinBatteryLevel || m.BatteryLevel > MaxBatteryLevel {
			t.Errorf("item %d: battery %v out of range", i, m.BatteryLevel)
		}
		if m.Timestamp.Before(BaseTime) || m.Timestamp.After(BaseTime.Add(24*time.Hour)) {
			t.Errorf("item %d: timestamp %v outside window", i, m.Timestamp)
		}
		if i > 0 && m.Timestamp.After(ms[i-1].Timestamp) {
			t.Errorf("item %d: not sorted newest first", i)
		}
	}
}

func TestGenerate_DeviceFilter(t *testing.T) {
	g := NewGenerator(42)
	all := g.Generate(200, "")
	filtered := g.Generate(200, "device_3")

	want := 0
	for _, m := range all {
		if m.DeviceID == "device_3" {
			want++
		}
	}

	if len(filtered) != want {
		t.Fatalf("filtered len = %d, want %d", len(filtered), want)
	}
	for _, m := range filtered {
		if m.DeviceID != "device_3" {
			t.Errorf("filtered item has device %q", m.DeviceID)
		}
	}

	if got := g.Generate(200, "device_99"); len(got) != 0 {
		t.Errorf("unknown device returned %d items, want 0", len(got))
	}
}

func TestID_Stable(t *testing.T) {
	if got := ID(0); got != ID(0) {
		t.Errorf("ID not stable: %s", got)
	}
	if ID(0) == ID(1) {
		t.Error("distinct indexes share an id")
	}
}
