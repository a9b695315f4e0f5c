package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslator(t *testing.T) {
	en := Translator("en")
	assert.Equal(t, "Success", en("TOAST_TITLE_SUCCESS"))
	assert.Equal(t, "NOT_A_KEY", en("NOT_A_KEY"))

	th := Translator("th")
	assert.Equal(t, "สำเร็จ", th("TOAST_TITLE_SUCCESS"))

	// Unknown locale falls back to English.
	xx := Translator("xx")
	assert.Equal(t, "Signaling connected", xx("MQTT_CLIENT_CONNECTED"))
}

func TestCatalogsCoverSameKeys(t *testing.T) {
	en := locales["en"]
	for name, cat := range locales {
		assert.Len(t, cat, len(en), "locale %s key count", name)
		for key := range en {
			_, ok := cat[key]
			assert.True(t, ok, "locale %s missing %s", name, key)
		}
	}
}
