package ephemeris

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/solar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhmspector/ZeitSatTrack/internal/transform"
)

var chandigarh = transform.Observer{Latitude: 30.7333, Longitude: 76.7794}

type expected struct {
	lat, lon, el, az float64
}

// TestJan1_2000 checks the published Sun, Moon and Mars values for
// 2000-01-01T00:00Z seen from Chandigarh.
func TestJan1_2000(t *testing.T) {
	at := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	sun := ComputeSun(at)
	moon, err := Compute(Moon, at, sun)
	require.NoError(t, err)
	mars, err := Compute(Mars, at, sun)
	require.NoError(t, err)

	tests := []struct {
		state *BodyState
		want  expected
	}{
		{sun, expected{-23.07201, 180.766785, -23.0425529, 104.037621}},
		{moon, expected{-9.134998, 115.872955, 34.78246, 129.630264}},
		{mars, expected{-13.32201, 230.175415, -59.9539452, 60.4970245}},
	}

	for _, tt := range tests {
		t.Run(tt.state.Body.String(), func(t *testing.T) {
			h := tt.state.Horizon(chandigarh)
			assert.InDelta(t, tt.want.lat, tt.state.Latitude, 1e-2, "latitude")
			assert.InDelta(t, tt.want.lon, tt.state.Longitude, 1e-2, "longitude")
			assert.InDelta(t, tt.want.el, h.ElevationDeg, 1e-2, "elevation")
			assert.InDelta(t, tt.want.az, h.AzimuthDeg, 1e-2, "azimuth")
		})
	}
}

// TestRegression pins every body, including the perturbed outer planets, on
// two dates.
func TestRegression(t *testing.T) {
	tests := []struct {
		time time.Time
		obs  transform.Observer
		want map[Body]expected
	}{
		{
			time: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
			obs:  chandigarh,
			want: map[Body]expected{
				Mercury: {-24.379610, 171.252913, -15.784138, 109.328370},
				Venus:   {-18.318113, 139.312969, 12.459246, 120.386309},
				Jupiter: {8.620667, 283.695256, -42.795762, 322.010311},
				Saturn:  {12.530810, 299.107945, -30.955396, 310.612951},
				Uranus:  {-17.029197, 217.471157, -51.780210, 78.212185},
				Neptune: {-19.218853, 205.439488, -42.474418, 88.562034},
			},
		},
		{
			time: time.Date(2024, 6, 15, 18, 45, 30, 0, time.UTC),
			obs:  transform.Observer{Latitude: 51.4779, Longitude: -0.0015},
			want: map[Body]expected{
				Sun:     {23.317810, 258.879482, 11.061033, 293.704187},
				Moon:    {0.053686, 356.838888, 38.480781, 184.726759},
				Mercury: {24.326009, 259.250902, 12.061574, 294.073384},
				Venus:   {23.756251, 261.948799, 13.165911, 291.742115},
				Mars:    {11.931579, 207.394926, -22.518839, 331.661425},
				Jupiter: {20.373022, 237.443413, -2.598742, 308.064808},
				Saturn:  {-6.034249, 166.374318, -42.883914, 20.560224},
				Uranus:  {18.752785, 227.613141, -8.715607, 315.625389},
				Neptune: {-1.220066, 175.342046, -39.534540, 7.041658},
			},
		},
	}

	for _, tt := range tests {
		sky, err := Sky(tt.time, tt.obs)
		require.NoError(t, err)
		require.Len(t, sky, len(AllBodies))

		for _, p := range sky {
			want, ok := tt.want[p.Body]
			if !ok {
				continue
			}
			t.Run(tt.time.Format("2006-01-02")+"/"+p.Body.String(), func(t *testing.T) {
				assert.InDelta(t, want.lat, p.Latitude, 1e-5, "latitude")
				assert.InDelta(t, want.lon, p.Longitude, 1e-5, "longitude")
				assert.InDelta(t, want.el, p.Horizon.ElevationDeg, 1e-5, "elevation")
				assert.InDelta(t, want.az, p.Horizon.AzimuthDeg, 1e-5, "azimuth")
			})
		}
	}
}

// TestSunAgainstMeeus compares the low-precision Sun with the full solar
// theory at 0h UT, where the day number carries no fraction.
func TestSunAgainstMeeus(t *testing.T) {
	dates := []time.Time{
		time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2010, 3, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
	}
	for _, at := range dates {
		t.Run(at.Format("2006-01-02"), func(t *testing.T) {
			sun := ComputeSun(at)
			ra, dec := solar.ApparentEquatorial(julian.TimeToJD(at))

			dRA := math.Abs(sun.RA - transform.Degrees(ra.Rad()))
			if dRA > 180 {
				dRA = 360 - dRA
			}
			assert.Less(t, dRA, 0.1, "right ascension")
			assert.InDelta(t, transform.Degrees(dec.Rad()), sun.Dec, 0.1, "declination")
			assert.InDelta(t, 1.0, sun.Distance, 0.02, "distance in AU")
		})
	}
}

func TestComputeRequiresSun(t *testing.T) {
	at := time.Date(2020, 2, 2, 2, 2, 0, 0, time.UTC)

	_, err := Compute(Venus, at, nil)
	assert.ErrorIs(t, err, ErrSunRequired)

	moon, _ := Compute(Moon, at, ComputeSun(at))
	_, err = Compute(Venus, at, moon)
	assert.ErrorIs(t, err, ErrSunRequired, "a non-Sun reference is rejected")

	stale := ComputeSun(at.Add(-time.Hour))
	_, err = Compute(Venus, at, stale)
	assert.True(t, errors.Is(err, ErrSunRequired), "a Sun state for another instant is rejected")

	// Seconds are not part of the day fraction.
	_, err = Compute(Venus, at.Add(30*time.Second), ComputeSun(at))
	assert.NoError(t, err)

	_, err = Compute(Body(42), at, ComputeSun(at))
	assert.Error(t, err)
}

func TestMoonUsesSunReference(t *testing.T) {
	at := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	sun := ComputeSun(at)
	moon, err := Compute(Moon, at, sun)
	require.NoError(t, err)

	assert.InDelta(t, sun.Xg+moon.Xh, moon.Xg, 1e-12)
	assert.InDelta(t, sun.Yg+moon.Yh, moon.Yg, 1e-12)
	assert.InDelta(t, sun.Zg+moon.Zh, moon.Zg, 1e-12)
	assert.NotZero(t, moon.PR)
}

func TestPerturbationsOnlyForOuterPlanetsAndMoon(t *testing.T) {
	at := time.Date(2015, 7, 4, 12, 0, 0, 0, time.UTC)
	sun := ComputeSun(at)
	for _, b := range AllBodies {
		st := sun
		if b != Sun {
			var err error
			st, err = Compute(b, at, sun)
			require.NoError(t, err)
		}
		switch b {
		case Jupiter, Uranus:
			assert.NotZero(t, st.PLong, b.String())
			assert.Zero(t, st.PLat, b.String())
		case Saturn, Moon:
			assert.NotZero(t, st.PLong, b.String())
			assert.NotZero(t, st.PLat, b.String())
		default:
			assert.Zero(t, st.PLong, b.String())
			assert.Zero(t, st.PLat, b.String())
			assert.Zero(t, st.PR, b.String())
		}
	}
}

func TestStateRanges(t *testing.T) {
	start := time.Date(1995, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 400; i++ {
		at := start.Add(time.Duration(i) * 73 * time.Hour)
		sky, err := Sky(at, chandigarh)
		require.NoError(t, err)
		for _, p := range sky {
			if p.Longitude < 0 || p.Longitude >= 360 || p.RA < 0 || p.RA >= 360 {
				t.Fatalf("%s at %v: longitude %v, RA %v out of [0,360)", p.Body, at, p.Longitude, p.RA)
			}
			if math.Abs(p.Horizon.ElevationDeg) > 90 {
				t.Fatalf("%s at %v: elevation %v", p.Body, at, p.Horizon.ElevationDeg)
			}
		}
	}
}

func TestParseBody(t *testing.T) {
	for _, b := range AllBodies {
		got, err := ParseBody(" " + b.String() + " ")
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}
	got, err := ParseBody("MARS")
	require.NoError(t, err)
	assert.Equal(t, Mars, got)

	_, err = ParseBody("pluto")
	assert.Error(t, err)

	assert.Equal(t, "Body(99)", Body(99).String())
	assert.Len(t, Planets, 7)
	assert.Equal(t, Sun, AllBodies[0])
}

func TestBodiesSubset(t *testing.T) {
	at := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := Bodies(at, chandigarh, Mars, Sun)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Mars, got[0].Body)
	assert.Equal(t, Sun, got[1].Body)
	assert.InDelta(t, -13.32201, got[0].Latitude, 1e-2)
}
