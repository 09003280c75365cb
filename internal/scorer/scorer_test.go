package scorer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestCO2Score_Bounds(t *testing.T) {
	for _, ppm := range []float64{-50, 0, 250, 399.9, 400} {
		assert.Equal(t, 100.0, CO2Score(f(ppm)), "ppm=%v", ppm)
	}
	for _, ppm := range []float64{1500, 1500.1, 2000, 1e6, math.Inf(1)} {
		assert.Equal(t, 0.0, CO2Score(f(ppm)), "ppm=%v", ppm)
	}
	assert.InDelta(t, 50.0, CO2Score(f(950)), 1e-9)
}

func TestCO2Score_Monotonic(t *testing.T) {
	prev := CO2Score(f(400))
	for ppm := 400.0; ppm <= 1500; ppm += 7.5 {
		cur := CO2Score(f(ppm))
		require.LessOrEqual(t, cur, prev, "ppm=%v", ppm)
		prev = cur
	}
}

func TestNoiseScore_Bounds(t *testing.T) {
	for _, db := range []float64{0, 15, 30} {
		assert.Equal(t, 100.0, NoiseScore(f(db)), "db=%v", db)
	}
	for _, db := range []float64{70, 85, 120} {
		assert.Equal(t, 0.0, NoiseScore(f(db)), "db=%v", db)
	}
	assert.InDelta(t, 50.0, NoiseScore(f(50)), 1e-9)
}

func TestThermalScore(t *testing.T) {
	assert.Equal(t, 100.0, ThermalScore(f(22)))

	for _, c := range []float64{16, 10, -5, 28, 35} {
		assert.Equal(t, 0.0, ThermalScore(f(c)), "temp=%v", c)
	}

	for d := 0.0; d <= 8; d += 0.25 {
		assert.InDelta(t, ThermalScore(f(22-d)), ThermalScore(f(22+d)), 1e-9, "delta=%v", d)
	}

	assert.InDelta(t, 50.0, ThermalScore(f(25)), 1e-9)
}

func TestMissingInputsScoreNeutral(t *testing.T) {
	nan := math.NaN()

	assert.Equal(t, 100.0, CO2Score(nil))
	assert.Equal(t, 100.0, CO2Score(&nan))
	assert.Equal(t, 100.0, NoiseScore(nil))
	assert.Equal(t, 100.0, NoiseScore(&nan))
	assert.Equal(t, 100.0, ThermalScore(nil))
	assert.Equal(t, 100.0, ThermalScore(&nan))
}

func TestFlowIndex(t *testing.T) {
	tests := []struct {
		name string
		in   Metrics
		want int
	}{
		{
			name: "ideal environment",
			in:   Metrics{CO2: f(400), Noise: f(30), Temperature: f(22)},
			want: 100,
		},
		{
			name: "worst air and noise at ideal temperature",
			// 0.4*0 + 0.3*0 + 0.3*100
			in:   Metrics{CO2: f(1500), Noise: f(70), Temperature: f(22)},
			want: 30,
		},
		{
			name: "all inputs missing",
			in:   Metrics{},
			want: 100,
		},
		{
			name: "half way everywhere",
			// 0.4*50 + 0.3*50 + 0.3*50
			in:   Metrics{CO2: f(950), Noise: f(50), Temperature: f(25)},
			want: 50,
		},
		{
			name: "rounds half up",
			// co2=100, noise=100, thermal=100*(1-1.5/6)=75 -> 40+30+22.5 = 92.5
			in:   Metrics{CO2: f(300), Noise: f(20), Temperature: f(23.5)},
			want: 93,
		},
		{
			name: "exact half survives float error",
			// 0.4*45 + 0.3*45 + 0.3*100 = 61.5, summed in floats as 61.49999...
			in:   Metrics{CO2: f(1005), Noise: f(52), Temperature: f(22)},
			want: 62,
		},
		{
			name: "everything terrible",
			in:   Metrics{CO2: f(5000), Noise: f(100), Temperature: f(40)},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FlowIndex(tt.in))
		})
	}
}

func TestFlowIndex_AlwaysInRange(t *testing.T) {
	for co2 := 0.0; co2 <= 3000; co2 += 137 {
		for noise := 0.0; noise <= 100; noise += 9 {
			for temp := -10.0; temp <= 45; temp += 3.5 {
				got := FlowIndex(Metrics{CO2: f(co2), Noise: f(noise), Temperature: f(temp)})
				require.GreaterOrEqual(t, got, 0)
				require.LessOrEqual(t, got, 100)
			}
		}
	}
}

func TestAlertStatus(t *testing.T) {
	tests := []struct {
		name string
		in   Metrics
		want string
	}{
		{"co2 only", Metrics{CO2: f(1000), Noise: f(0), Temperature: f(22)}, "ALERT_CO2"},
		{"all three in fixed order", Metrics{CO2: f(1000), Noise: f(60), Temperature: f(27)}, "ALERT_CO2_NOISE_THERMAL"},
		{"just below every threshold", Metrics{CO2: f(999), Noise: f(59), Temperature: f(19)}, "OK"},
		{"co2 and thermal", Metrics{CO2: f(1200), Noise: f(40), Temperature: f(26)}, "ALERT_CO2_THERMAL"},
		{"cold counts as thermal", Metrics{CO2: f(500), Noise: f(40), Temperature: f(18)}, "ALERT_THERMAL"},
		{"noise only", Metrics{CO2: f(500), Noise: f(75), Temperature: f(21)}, "ALERT_NOISE"},
		{"missing never alerts", Metrics{}, "OK"},
		{"nan never alerts", Metrics{CO2: f(math.NaN()), Noise: f(math.NaN()), Temperature: f(math.NaN())}, "OK"},
		{"missing temperature with high noise", Metrics{Noise: f(80)}, "ALERT_NOISE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AlertStatus(tt.in))
		})
	}
}

func TestScore_Deterministic(t *testing.T) {
	in := Metrics{CO2: f(812), Noise: f(47.3), Temperature: f(24.1)}

	first := Score(in)
	second := Score(in)

	assert.Equal(t, first, second)
	assert.Equal(t, FlowIndex(in), first.FlowIndex)
	assert.Equal(t, AlertStatus(in), first.AlertStatus)
}

func TestMetricsEmpty(t *testing.T) {
	assert.True(t, Metrics{}.Empty())
	assert.True(t, Metrics{CO2: f(math.NaN())}.Empty())
	assert.False(t, Metrics{Temperature: f(21)}.Empty())
}
