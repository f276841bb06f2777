package validation

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 6, 15, 18, 30, 0, 0, IST)

func newTestValidator() *Validator {
	return New(catalog.Default(), WithClock(func() time.Time { return fixedNow }))
}

func intPtr(v int) *int { return &v }

func validInput() Input {
	return Input{
		Name:    "Asha Deshpande",
		Phone:   "9876543210",
		Email:   "asha@example.com",
		Service: "rudrabhishek",
		Date:    "2026-06-20",
		Time:    "09:30",
		Address: "12 MG Road, Pune",
	}
}

func kundaliInput() Input {
	in := validInput()
	in.Service = catalog.AstrologyKundali
	in.BirthDate = "1990-04-12"
	in.BirthHours = intPtr(7)
	in.BirthMinutes = intPtr(45)
	in.BirthPeriod = "AM"
	in.BirthPlace = "Nashik"
	return in
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestValidInput(t *testing.T) {
	v := newTestValidator()
	for _, in := range []Input{validInput(), kundaliInput()} {
		res := v.Validate(in, "en")
		require.True(t, res.Valid, "errors: %v", res.Errors)
		require.Empty(t, res.Errors)
	}
}

func TestUnicodeAndPunctuatedNames(t *testing.T) {
	v := newTestValidator()
	for _, name := range []string{"आशा देशपांडे", "Mary-Jane O'Neil", "Jo", "  Ravi  "} {
		in := validInput()
		in.Name = name
		res := v.Validate(in, "en")
		assert.True(t, res.Valid, "name %q: %v", name, res.Errors)
	}
}

func TestOnlyFailingFieldsAreReported(t *testing.T) {
	v := newTestValidator()
	cases := []struct {
		name   string
		mutate func(*Input)
		want   []string
	}{
		{"missing name", func(in *Input) { in.Name = "  " }, []string{FieldName}},
		{"short name", func(in *Input) { in.Name = "A" }, []string{FieldName}},
		{"digits in name", func(in *Input) { in.Name = "R2D2" }, []string{FieldName}},
		{"long name", func(in *Input) { in.Name = string(make([]rune, 51)) }, []string{FieldName}},
		{"phone letters", func(in *Input) { in.Phone = "98765abcde" }, []string{FieldPhone}},
		{"phone short", func(in *Input) { in.Phone = "987654321" }, []string{FieldPhone}},
		{"email no tld", func(in *Input) { in.Email = "asha@example" }, []string{FieldEmail}},
		{"unknown service", func(in *Input) { in.Service = "kaal-sarp" }, []string{FieldService}},
		{"past date", func(in *Input) { in.Date = "2026-06-14" }, []string{FieldDate}},
		{"bad date", func(in *Input) { in.Date = "20/06/2026" }, []string{FieldDate}},
		{"missing time and address", func(in *Input) { in.Time = ""; in.Address = " " }, []string{FieldTime, FieldAddress}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			res := v.Validate(in, "en")
			require.False(t, res.Valid)
			assert.ElementsMatch(t, tc.want, keys(res.Errors))
		})
	}
}

func TestTodayIsBookable(t *testing.T) {
	in := validInput()
	in.Date = "2026-06-15"
	res := newTestValidator().Validate(in, "en")
	require.True(t, res.Valid, "errors: %v", res.Errors)
}

func TestMissingBirthPlaceOnlyReportsBirthPlace(t *testing.T) {
	in := kundaliInput()
	in.BirthPlace = ""
	res := newTestValidator().Validate(in, "en")
	require.False(t, res.Valid)
	assert.Equal(t, []string{FieldBirthPlace}, keys(res.Errors))
}

func TestBirthDetailsErrorsAccumulate(t *testing.T) {
	in := validInput()
	in.Service = catalog.AstrologyKundali
	res := newTestValidator().Validate(in, "en")
	require.False(t, res.Valid)
	assert.ElementsMatch(t, []string{
		FieldBirthDate, FieldBirthHours, FieldBirthMinutes, FieldBirthPeriod, FieldBirthPlace,
	}, keys(res.Errors))
}

func TestBirthDetailsIgnoredForOtherServices(t *testing.T) {
	in := validInput()
	in.BirthHours = intPtr(99)
	res := newTestValidator().Validate(in, "en")
	require.True(t, res.Valid)
}

func TestBirthDateBounds(t *testing.T) {
	v := newTestValidator()
	cases := map[string]bool{
		"2026-06-15": true,
		"2026-06-16": false,
		"1900-01-01": true,
		"1899-12-31": false,
	}
	for date, ok := range cases {
		in := kundaliInput()
		in.BirthDate = date
		res := v.Validate(in, "en")
		assert.Equal(t, ok, res.Valid, "birth date %s: %v", date, res.Errors)
		if !ok {
			assert.Equal(t, []string{FieldBirthDate}, keys(res.Errors))
		}
	}
}

func TestBirthTimeFullRange(t *testing.T) {
	v := newTestValidator()
	for h := 1; h <= 12; h++ {
		for m := 0; m <= 59; m++ {
			for _, p := range []string{"AM", "PM"} {
				in := kundaliInput()
				in.BirthHours = intPtr(h)
				in.BirthMinutes = intPtr(m)
				in.BirthPeriod = p
				if res := v.Validate(in, "en"); !res.Valid {
					t.Fatalf("%d:%02d %s rejected: %v", h, m, p, res.Errors)
				}
			}
		}
	}
}

func TestBirthTimeOutOfRange(t *testing.T) {
	v := newTestValidator()
	cases := []struct {
		hours, minutes int
		want           string
	}{
		{0, 30, FieldBirthHours},
		{13, 30, FieldBirthHours},
		{-1, 30, FieldBirthHours},
		{5, 60, FieldBirthMinutes},
		{5, -1, FieldBirthMinutes},
	}
	for _, tc := range cases {
		in := kundaliInput()
		in.BirthHours = intPtr(tc.hours)
		in.BirthMinutes = intPtr(tc.minutes)
		res := v.Validate(in, "en")
		require.False(t, res.Valid)
		assert.Equal(t, []string{tc.want}, keys(res.Errors), "%d:%d", tc.hours, tc.minutes)
	}
}

func TestZeroMinutesIsPresent(t *testing.T) {
	in := kundaliInput()
	in.BirthMinutes = intPtr(0)
	res := newTestValidator().Validate(in, "en")
	require.True(t, res.Valid, "errors: %v", res.Errors)

	in.BirthMinutes = nil
	res = newTestValidator().Validate(in, "en")
	assert.Equal(t, []string{FieldBirthMinutes}, keys(res.Errors))
}

func TestLocalizedMessages(t *testing.T) {
	in := validInput()
	in.Phone = ""
	v := newTestValidator()

	en := v.Validate(in, "en").Errors[FieldPhone]
	hi := v.Validate(in, "hi").Errors[FieldPhone]
	fallback := v.Validate(in, "fr").Errors[FieldPhone]

	assert.Equal(t, "Phone number is required", en)
	assert.NotEqual(t, en, hi)
	assert.Equal(t, en, fallback)
}

func TestValidateDoesNotMutateInput(t *testing.T) {
	in := kundaliInput()
	in.Name = "  Asha  "
	in.BirthPeriod = "pm"
	before := in
	newTestValidator().Validate(in, "en")
	assert.Equal(t, before, in)
}

func TestNormalizedTrimsAndUppercasesPeriod(t *testing.T) {
	in := kundaliInput()
	in.Email = "asha@example.com\r\n"
	in.Service = " " + catalog.AstrologyKundali + " "
	in.BirthPeriod = " pm"

	got := in.Normalized()
	assert.Equal(t, "asha@example.com", got.Email)
	assert.Equal(t, catalog.AstrologyKundali, got.Service)
	assert.Equal(t, "PM", got.BirthPeriod)
	assert.Equal(t, " pm", in.BirthPeriod)
	assert.True(t, newTestValidator().Validate(in, "en").Valid)
}
