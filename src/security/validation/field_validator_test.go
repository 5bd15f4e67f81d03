package validation

import (
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/username/monedero/backend/src/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func TestValidateStringNotEmpty(t *testing.T) {
	assert.NoError(t, ValidateStringNotEmpty("groceries", "name"))
	assert.ErrorIs(t, ValidateStringNotEmpty("", "name"), ErrValidationFailed)
	assert.ErrorIs(t, ValidateStringNotEmpty("   ", "name"), ErrValidationFailed)
}

func TestValidateStringMaxLength(t *testing.T) {
	assert.NoError(t, ValidateStringMaxLength("abc", 3, "name"))
	assert.ErrorIs(t, ValidateStringMaxLength("abcd", 3, "name"), ErrValidationFailed)
	// Counted in runes, not bytes.
	assert.NoError(t, ValidateStringMaxLength("ñandú", 5, "name"))
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(0, "amount"))
	assert.NoError(t, ValidateAmount(1234.56, "amount"))
	assert.ErrorIs(t, ValidateAmount(-1, "amount"), ErrValidationFailed)
	assert.ErrorIs(t, ValidateAmount(math.NaN(), "amount"), ErrValidationFailed)
}

func TestValidateSymbol(t *testing.T) {
	tests := []struct {
		symbol string
		ok     bool
	}{
		{"GGAL", true},
		{"AL30D", true},
		{" YPFD ", true},
		{"", false},
		{"ggal", false},
		{"TOOLONGSYMBOL", false},
		{"GG-AL", false},
	}
	for _, tt := range tests {
		err := ValidateSymbol(tt.symbol)
		if tt.ok {
			assert.NoError(t, err, "symbol %q", tt.symbol)
		} else {
			assert.ErrorIs(t, err, ErrValidationFailed, "symbol %q", tt.symbol)
		}
	}
}

func TestValidateMonth(t *testing.T) {
	month, err := ValidateMonth("2025-06")
	assert.NoError(t, err)
	assert.Equal(t, "2025-06", month)

	month, err = ValidateMonth(" 2025-06 ")
	assert.NoError(t, err)
	assert.Equal(t, "2025-06", month)

	for _, bad := range []string{"2025-13", "2025-00", "2025-6", "junio", ""} {
		_, err := ValidateMonth(bad)
		assert.ErrorIs(t, err, ErrValidationFailed, "month %q", bad)
	}
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "groceries", SanitizeText("groceries"))
	assert.Equal(t, "", SanitizeText("<script>alert(1)</script>"))
	assert.Equal(t, "rent", SanitizeText(`<a href="http://evil">rent</a>`))
	assert.Equal(t, "farmacia", SanitizeText("<b>farmacia</b>"))
}
