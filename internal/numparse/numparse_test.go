package numparse

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "borsapulse/internal/errors"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		want    float64
		wantErr bool
	}{
		{name: "comma decimal with dot thousands", token: "1.234,56", want: 1234.56},
		{name: "dot decimal with comma thousands", token: "1,234.56", want: 1234.56},
		{name: "only comma is decimal", token: "12,5", want: 12.5},
		{name: "only dot is decimal", token: "12.5", want: 12.5},
		{name: "repeated dots group thousands", token: "1.234.567", want: 1234567},
		{name: "repeated commas group thousands", token: "1,234,567", want: 1234567},
		{name: "quoted token", token: `"1.234,50"`, want: 1234.5},
		{name: "single quoted with spaces", token: "  '99,9' ", want: 99.9},
		{name: "negative", token: "-0,45", want: -0.45},
		{name: "plain integer", token: "42", want: 42},
		{name: "empty", token: "", wantErr: true},
		{name: "only quotes", token: `""`, wantErr: true},
		{name: "garbage", token: "abc", wantErr: true},
		{name: "trailing garbage", token: "12,5x", wantErr: true},
		{name: "nan", token: "NaN", wantErr: true},
		{name: "inf", token: "Inf", wantErr: true},
		{name: "negative infinity", token: "-Infinity", wantErr: true},
		{name: "out of range exponent", token: "1e400", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecimal(tt.token)
			if tt.wantErr {
				require.Error(t, err)
				var parseErr *apperrors.ParseError
				assert.True(t, errors.As(err, &parseErr))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseVolume(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		want   float64
		wantOK bool
	}{
		{name: "mega suffix", token: "1.5M", want: 1_500_000, wantOK: true},
		{name: "mega suffix comma decimal", token: "1,5M", want: 1_500_000, wantOK: true},
		{name: "kilo suffix", token: "850,2K", want: 850_200, wantOK: true},
		{name: "billion suffix lowercase", token: "2b", want: 2e9, wantOK: true},
		{name: "plain number", token: "12345", want: 12345, wantOK: true},
		{name: "quoted", token: `"3,25M"`, want: 3_250_000, wantOK: true},
		{name: "dash means no trading", token: "-", want: 0, wantOK: true},
		{name: "invalid text", token: "invalid", want: InvalidVolume, wantOK: false},
		{name: "empty", token: "", want: InvalidVolume, wantOK: false},
		{name: "suffix only", token: "M", want: InvalidVolume, wantOK: false},
		{name: "negative", token: "-5K", want: InvalidVolume, wantOK: false},
		{name: "nan", token: "NaN", want: InvalidVolume, wantOK: false},
		{name: "inf with suffix", token: "InfM", want: InvalidVolume, wantOK: false},
		{name: "negative infinity", token: "-Infinity", want: InvalidVolume, wantOK: false},
		{name: "overflows int64", token: "99999999999B", want: InvalidVolume, wantOK: false},
		{name: "largest billions that fit", token: "9000000000B", want: 9e18, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseVolume(tt.token)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		token   string
		want    float64
		wantErr bool
	}{
		{token: "1,19%", want: 1.19},
		{token: `"-0,45%"`, want: -0.45},
		{token: "0.81%", want: 0.81},
		{token: "", want: 0},
		{token: "%", want: 0},
		{token: "n/a%", wantErr: true},
		{token: "Inf%", wantErr: true},
		{token: "NaN%", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParsePercent(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		token   string
		layout  string
		want    time.Time
		wantErr bool
	}{
		{name: "dotted day first", token: "03.01.2024", want: want},
		{name: "quoted", token: `"03.01.2024"`, want: want},
		{name: "single digits", token: "3.1.2024", want: want},
		{name: "slashes", token: "03/01/2024", want: want},
		{name: "dashes", token: "03-01-2024", want: want},
		{name: "iso fallback", token: "2024-01-03", want: want},
		{name: "explicit layout", token: "2024/01/03", layout: "2006/01/02", want: want},
		{name: "explicit layout mismatch", token: "03.01.2024", layout: "2006/01/02", wantErr: true},
		{name: "month out of range", token: "03.13.2024", wantErr: true},
		{name: "garbage", token: "yesterday", wantErr: true},
		{name: "empty", token: " ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.token, tt.layout)
			if tt.wantErr {
				var parseErr *apperrors.ParseError
				require.Error(t, err)
				assert.True(t, errors.As(err, &parseErr))
				assert.Equal(t, "date", parseErr.Field)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}
