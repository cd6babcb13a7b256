package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{82000, "82,000"},
		{1234567.8, "1,234,568"},
		{2000.5, "2,001"},
		{165.456, "165.46"},
		{1, "1.00"},
		{0.5321, "0.532100"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Price(tt.in), "Price(%v)", tt.in)
	}
}

func TestReportPrice(t *testing.T) {
	assert.Equal(t, "76,000.00", ReportPrice(76000))
	assert.Equal(t, "3,400.55", ReportPrice(3400.55))
	assert.Equal(t, "0.53000000", ReportPrice(0.53))
}

func TestChange(t *testing.T) {
	assert.Equal(t, "+1.25%", Change(1.25))
	assert.Equal(t, "+0.00%", Change(0))
	assert.Equal(t, "-3.40%", Change(-3.4))
}

func TestPercentDistance(t *testing.T) {
	assert.Equal(t, 0.03, PercentDistance(2000.6, 2000))
	assert.Equal(t, 1.0, PercentDistance(99, 100))
	assert.Zero(t, PercentDistance(5, 0))
}
