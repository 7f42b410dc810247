package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func mustKey(t *testing.T, p Product, date time.Time, run, fh int) ForcingFileKey {
	t.Helper()
	k, err := NewKey(p, date, run, fh)
	require.NoError(t, err)
	return k
}

func TestProductTraitsComplete(t *testing.T) {
	for _, p := range Products() {
		s, ok := traitsByProduct[p]
		require.True(t, ok, "missing traits for %d", int(p))
		assert.NotEmpty(t, s.name)
		assert.NotNil(t, s.grammar, p.String())
		assert.Contains(t, []int{3, 4}, s.forecastWidth, p.String())
	}
	assert.Len(t, traitsByProduct, len(Products()))
}

func TestParseProduct(t *testing.T) {
	for _, p := range Products() {
		got, err := ParseProduct(" " + p.String() + " ")
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	got, err := ParseProduct("hrrr")
	require.NoError(t, err)
	assert.Equal(t, HRRR, got)

	_, err = ParseProduct("ECMWF")
	require.Error(t, err)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		product Product
		file    string
		want    ForcingFileKey
	}{
		{"RAP three digit", RAP, "20230101_i05_f003_RAP.grb2", ForcingFileKey{RAP, day(2023, 1, 1), 5, 3}},
		{"HRRR two digit", HRRR, "20230615_i18_f12_HRRR.grb2", ForcingFileKey{HRRR, day(2023, 6, 15), 18, 12}},
		{"GFS four digit", GFS, "gfs_20231231_i00_f0384.grb2", ForcingFileKey{GFS, day(2023, 12, 31), 0, 384}},
		{"MRMS", MRMS, "GaugeCorr_QPE_00.00_20230101_060000.grib2", ForcingFileKey{MRMS, day(2023, 1, 1), 6, 0}},
		{"MRMS nonzero minute", MRMS, "GaugeCorr_QPE_00.00_20230101_233000.grib2", ForcingFileKey{MRMS, day(2023, 1, 1), 23, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.product, tt.file)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		product Product
		file    string
	}{
		{"no token", RAP, "readme.txt"},
		{"bad date", RAP, "20231301_i05_f003_RAP.grb2"},
		{"run hour out of range", HRRR, "20230101_i24_f003_HRRR.grb2"},
		{"forecast too wide", RAP, "20230101_i05_f00003_RAP.grb2"},
		{"forecast exceeds width", HRRR, "20230101_i05_f1000_HRRR.grb2"},
		{"MRMS without timestamp", MRMS, "GaugeCorr_QPE_00.00.grib2"},
		{"MRMS bad minute", MRMS, "GaugeCorr_QPE_00.00_20230101_067000.grib2"},
		{"unknown product", Product(99), "20230101_i05_f003.grb2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.product, tt.file)
			var ne *NamingError
			require.ErrorAs(t, err, &ne)
			assert.Equal(t, tt.file, ne.Name)
		})
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, p := range Products() {
		fhs := []int{0, 1, 18}
		if p.ForecastWidth() == 4 {
			fhs = append(fhs, 384, 9999)
		}
		if !p.IsForecast() {
			fhs = []int{0}
		}
		for _, run := range []int{0, 5, 23} {
			for _, fh := range fhs {
				k := mustKey(t, p, day(2024, 2, 29), run, fh)
				got, err := Parse(p, Format(k))
				require.NoError(t, err, Format(k))
				assert.Equal(t, k, got, Format(k))
			}
		}
	}
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "20230101_i05_f003_RAP.nc", OutputName(mustKey(t, RAP, day(2023, 1, 1), 5, 3)))
	assert.Equal(t, "20230101_i00_f0006_GFS.nc", OutputName(mustKey(t, GFS, day(2023, 1, 1), 0, 6)))
	assert.Equal(t, "20230101_i06_f000_MRMS.nc", OutputName(mustKey(t, MRMS, day(2023, 1, 1), 6, 0)))
	assert.Equal(t, "20230101_i05_f003_Analysis-Assimilation.nc", LayeredName(mustKey(t, HRRR, day(2023, 1, 1), 5, 3)))
}

func TestParseOutputName(t *testing.T) {
	for _, p := range Products() {
		k := mustKey(t, p, day(2023, 3, 4), 12, 0)
		got, label, err := ParseOutputName(OutputName(k))
		require.NoError(t, err)
		assert.Equal(t, p.String(), label)
		assert.Equal(t, k, got)
	}

	k, label, err := ParseOutputName("20230101_i05_f003_Analysis-Assimilation.nc")
	require.NoError(t, err)
	assert.Equal(t, LayeredLabel, label)
	assert.Equal(t, Product(0), k.Product)
	assert.Equal(t, 3, k.ForecastHour)

	for _, bad := range []string{"20230101_i05_f003_RAP.grb2", "x_20230101_i05_f003_RAP.nc", "20230101_i05_f003_.nc"} {
		_, _, err := ParseOutputName(bad)
		var ne *NamingError
		assert.ErrorAs(t, err, &ne, bad)
	}
}

func TestResolve(t *testing.T) {
	subdir, name := Resolve(mustKey(t, HRRR, day(2023, 1, 1), 6, 2))
	assert.Equal(t, "20230101/i06", subdir)
	assert.Equal(t, "20230101_i06_f002_HRRR.nc", name)
}

func TestStageRoots_Path(t *testing.T) {
	k := mustKey(t, RAP, day(2023, 1, 1), 5, 3)
	roots := StageRoots{
		StageRaw:        "/raw",
		StageRegridded:  "/rg",
		StageDownscaled: "/ds",
		StageLayered:    "/layer",
	}

	tests := []struct {
		stage Stage
		want  string
	}{
		{StageRaw, "/raw/20230101/20230101_i05_f003_RAP.grb2"},
		{StageRegridded, "/rg/20230101/i05/20230101_i05_f003_RAP.nc"},
		{StageDownscaled, "/ds/20230101/i05/20230101_i05_f003_RAP.nc"},
		{StageLayered, "/layer/20230101/i05/20230101_i05_f003_Analysis-Assimilation.nc"},
	}
	for _, tt := range tests {
		t.Run(tt.stage.String(), func(t *testing.T) {
			got, err := roots.Path(tt.stage, k)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := roots.Path(StageBiasCorrected, k)
	require.Error(t, err)
}

func TestKeyTimes(t *testing.T) {
	k := mustKey(t, GFS, day(2023, 1, 1), 18, 6)
	assert.Equal(t, time.Date(2023, 1, 1, 18, 0, 0, 0, time.UTC), k.RunTime())
	assert.Equal(t, time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), k.ValidTime())
	assert.Equal(t, "GFS 20230101 i18 f0006", k.String())
}

func TestNewKey_NormalizesDate(t *testing.T) {
	loc := time.FixedZone("UTC-6", -6*60*60)
	k, err := NewKey(HRRR, time.Date(2023, 1, 1, 20, 30, 0, 0, loc), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, day(2023, 1, 2), k.Date)

	_, err = NewKey(MRMS, day(2023, 1, 1), 0, 1)
	require.Error(t, err)
}

func TestIsEligible(t *testing.T) {
	limits := LimitMap{HRRR: 18, RAP: 18}

	assert.True(t, IsEligible(HRRR, 17, limits))
	assert.False(t, IsEligible(HRRR, 18, limits))
	assert.False(t, IsEligible(HRRR, 19, limits))
	assert.True(t, IsEligible(MRMS, 0, limits))
	assert.False(t, IsEligible(GFS, 0, limits), "no limit configured")
}
