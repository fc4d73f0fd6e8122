package transform

import (
	"math"
	"math/rand"
	"testing"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/stretchr/testify/assert"
)

// TestJulianDate verifies our Julian Date calculation against known values.
func TestJulianDate(t *testing.T) {
	tests := []struct {
		name     string
		time     time.Time
		expected float64
	}{
		{
			name:     "J2000.0 epoch",
			time:     time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
			expected: 2451545.0,
		},
		{
			name:     "Unix epoch",
			time:     time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
			expected: 2440587.5,
		},
		{
			name:     "2001 reference date",
			time:     time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC),
			expected: 2451910.5,
		},
		{
			// Sub-second precision is truncated.
			name:     "fractional seconds dropped",
			time:     time.Date(2004, 4, 6, 7, 51, 28, 386009000, time.UTC),
			expected: 2453101.8274074076,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JulianDate(tt.time)
			diff := math.Abs(got - tt.expected)
			if diff > 1e-6 {
				t.Errorf("JulianDate(%v) = %.10f, want %.10f (diff=%.2e)", tt.time, got, tt.expected, diff)
			}
		})
	}
}

func TestJulianDateNonUTCInput(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	local := time.Date(2000, 1, 1, 17, 30, 0, 0, loc)
	assert.InDelta(t, 2451545.0, JulianDate(local), 1e-9)
}

func TestEpochJulianDate(t *testing.T) {
	// Day 1.5 of 2000 is 2000-01-01T12:00Z, i.e. J2000.0.
	assert.InDelta(t, j2000, EpochJulianDate(2000, 1.5), 1e-9)

	// ISS reference epoch 14332.12480567.
	want := JulianDate(time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)) + 331.12480567
	assert.InDelta(t, want, EpochJulianDate(2014, 332.12480567), 1e-9)
}

func TestJulianDateToTime(t *testing.T) {
	ts := time.Date(2014, 11, 28, 2, 59, 43, 0, time.UTC)
	back := JulianDateToTime(JulianDate(ts))
	assert.WithinDuration(t, ts, back, time.Millisecond)
	assert.Equal(t, time.UTC, back.Location())
}

func TestDayNumber(t *testing.T) {
	tests := []struct {
		name   string
		time   time.Time
		wantD  int
		wantUT float64
	}{
		{"2000-01-01 midnight", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), 1, 0},
		{"1999-12-31 noon", time.Date(1999, 12, 31, 12, 0, 0, 0, time.UTC), 0, 0.5},
		{"seconds ignored", time.Date(2000, 1, 1, 6, 30, 59, 0, time.UTC), 1, 390.0 / 1440.0},
		{"afternoon seconds ignored", time.Date(2000, 1, 1, 12, 30, 59, 0, time.UTC), 1, 750.0 / 1440.0},
		// Schlyter's worked example: 19 April 1990 0h UT is day -3543.
		{"1990-04-19", time.Date(1990, 4, 19, 0, 0, 0, 0, time.UTC), -3543, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ut := DayNumber(tt.time)
			assert.Equal(t, tt.wantD, d)
			assert.InDelta(t, tt.wantUT, ut, 1e-12)
			assert.InDelta(t, float64(tt.wantD)+tt.wantUT, DayTime(tt.time), 1e-12)
		})
	}
}

// TestEarthRotationAngle validates the USNO-based rotation angle against
// go-satellite's IAU-82 GMST. The two models agree to well under 0.01°.
func TestEarthRotationAngle(t *testing.T) {
	times := []time.Time{
		time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2014, 11, 28, 3, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 19, 23, 59, 59, 0, time.UTC),
	}
	for _, ts := range times {
		t.Run(ts.Format(time.RFC3339), func(t *testing.T) {
			jd := JulianDate(ts)
			ours := math.Mod(EarthRotationAngle(jd), 360)
			ref := Degrees(satellite.ThetaG_JD(jd))
			diff := math.Abs(ours - ref)
			if diff > 180 {
				diff = 360 - diff
			}
			if diff > 0.01 {
				t.Errorf("EarthRotationAngle(%v) = %.6f°, go-satellite = %.6f° (diff=%.2e)", ts, ours, ref, diff)
			}
		})
	}
}

func TestGreenwichSiderealAngleRange(t *testing.T) {
	start := JulianDate(time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC))
	for i := 0; i < 20000; i++ {
		jd := start + float64(i)*1.37
		g := GreenwichSiderealAngle(jd)
		if g < 0 || g >= 360 {
			t.Fatalf("GreenwichSiderealAngle(%f) = %f, out of [0,360)", jd, g)
		}
	}
}

func TestClampTo360(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(0.0, ClampTo360(0))
	assert.Equal(0.0, ClampTo360(360))
	assert.Equal(0.0, ClampTo360(720))
	assert.Equal(10.0, ClampTo360(370))
	assert.Equal(350.0, ClampTo360(-10))
	assert.Equal(359.5, ClampTo360(-0.5))
	assert.Equal(0.0, ClampTo360(-1e-20))

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		x := (rng.Float64() - 0.5) * math.Pow(10, float64(rng.Intn(12)))
		got := ClampTo360(x)
		if got < 0 || got >= 360 {
			t.Fatalf("ClampTo360(%g) = %g, out of [0,360)", x, got)
		}
	}

	assert.True(math.IsNaN(ClampTo360(math.NaN())))
}

// TestClampLatitude pins down the literal correction loop, including the
// values it deliberately leaves alone.
func TestClampLatitude(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{45, 45},
		{-100, -100},
		{180, 180},
		{200, 200}, // (180, 360] is not adjusted
		{360, 360},
		{400, 40},
		{-190, 170},
		{-540, 180},
	}
	for _, tt := range tests {
		if got := ClampLatitude(tt.in); got != tt.want {
			t.Errorf("ClampLatitude(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGreenwichSiderealAngle(t *testing.T) {
	midnight := JulianDate(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.InDelta(t, 99.96818468, GreenwichSiderealAngle(midnight), 1e-6)

	// Same value for any instant of the day.
	later := JulianDate(time.Date(2000, 1, 1, 6, 0, 0, 0, time.UTC))
	assert.InDelta(t, GreenwichSiderealAngle(midnight), GreenwichSiderealAngle(later), 1e-9)

	assert.InDelta(t, 360.0, MinutesSinceMidnight(later), 1e-6)
	assert.InDelta(t, 190.21459389, EarthRotationAngle(later), 1e-6)
}
