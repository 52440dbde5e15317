package esocial_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/esocial-sst-api/pkg/esocial"
)

func TestSanitizeCNPJ(t *testing.T) {
	assert.Equal(t, "03731608000184", esocial.SanitizeCNPJ("03.731.608/0001-84"))
	assert.Equal(t, "", esocial.SanitizeCNPJ(""))
	assert.Equal(t, "123", esocial.SanitizeCNPJ(" 1a2-3 "))
}

func TestValidateCNPJ_RechazaLongitudDistintaDe14(t *testing.T) {
	assert.NoError(t, esocial.ValidateCNPJ("03731608000184"))
	assert.Error(t, esocial.ValidateCNPJ(esocial.SanitizeCNPJ("03.731.608/0001")))
	assert.Error(t, esocial.ValidateCNPJ("037316080001840"))
	assert.Error(t, esocial.ValidateCNPJ("0373160800018x"))
}

func TestHasValidCheckDigits(t *testing.T) {
	assert.True(t, esocial.HasValidCheckDigits("03731608000184"))
	assert.True(t, esocial.HasValidCheckDigits("11222333000181"))
	assert.False(t, esocial.HasValidCheckDigits("11222333000182"))
	assert.False(t, esocial.HasValidCheckDigits("1122233300018"))
}
