// Package i18n provides the localized-string lookup consumed by the
// session coordinators. Keys are fixed and known at compile time; an
// unknown key or locale falls back to English, then to the key itself.
package i18n

type catalog map[string]string

var locales = map[string]catalog{
	"en": {
		"TOAST_TITLE_SUCCESS": "Success",
		"TOAST_TITLE_INFO":    "Info",
		"TOAST_TITLE_WARNING": "Warning",
		"TOAST_TITLE_ERROR":   "Error",

		"TOAST_MESSAGE_UNKNOWN_ERROR": "Unknown error",

		"MQTT_CLIENT_CONNECTED":        "Signaling connected",
		"MQTT_CLIENT_OFFLINE":          "Signaling offline",
		"MQTT_CLIENT_DISCONNECTED":     "Signaling disconnected",
		"MQTT_CLIENT_RECONNECTING":     "Signaling reconnecting",
		"MQTT_CLIENT_ENDED":            "Signaling ended",
		"MQTT_CLIENT_CLOSED":           "Signaling closed",
		"MQTT_CLIENT_ERROR":            "Signaling error",
		"MQTT_CLIENT_SUBSCRIBE_FAIL":   "Failed to subscribe to",
		"MQTT_CLIENT_PUBLISH_FAIL":     "Failed to publish to",
		"MQTT_CLIENT_UNSUBSCRIBE_FAIL": "Failed to unsubscribe from",

		"PEER_CLIENT_CONNECTED":    "Media connection ready",
		"PEER_CLIENT_CLOSED":       "Media connection closed",
		"PEER_CLIENT_DISCONNECTED": "Media connection lost",
		"PEER_CLIENT_ERROR":        "Media connection error",
	},
	"th": {
		"TOAST_TITLE_SUCCESS": "สำเร็จ",
		"TOAST_TITLE_INFO":    "ข้อมูล",
		"TOAST_TITLE_WARNING": "คำเตือน",
		"TOAST_TITLE_ERROR":   "ข้อผิดพลาด",

		"TOAST_MESSAGE_UNKNOWN_ERROR": "ข้อผิดพลาดที่ไม่รู้จัก",

		"MQTT_CLIENT_CONNECTED":        "เชื่อมต่อสัญญาณแล้ว",
		"MQTT_CLIENT_OFFLINE":          "สัญญาณออฟไลน์",
		"MQTT_CLIENT_DISCONNECTED":     "สัญญาณถูกตัดการเชื่อมต่อ",
		"MQTT_CLIENT_RECONNECTING":     "กำลังเชื่อมต่อสัญญาณใหม่",
		"MQTT_CLIENT_ENDED":            "สัญญาณสิ้นสุดแล้ว",
		"MQTT_CLIENT_CLOSED":           "สัญญาณปิดแล้ว",
		"MQTT_CLIENT_ERROR":            "สัญญาณผิดพลาด",
		"MQTT_CLIENT_SUBSCRIBE_FAIL":   "สมัครรับข้อมูลไม่สำเร็จ",
		"MQTT_CLIENT_PUBLISH_FAIL":     "ส่งข้อความไม่สำเร็จ",
		"MQTT_CLIENT_UNSUBSCRIBE_FAIL": "ยกเลิกการรับข้อมูลไม่สำเร็จ",

		"PEER_CLIENT_CONNECTED":    "การเชื่อมต่อสื่อพร้อมแล้ว",
		"PEER_CLIENT_CLOSED":       "การเชื่อมต่อสื่อปิดแล้ว",
		"PEER_CLIENT_DISCONNECTED": "การเชื่อมต่อสื่อขาดหาย",
		"PEER_CLIENT_ERROR":        "การเชื่อมต่อสื่อผิดพลาด",
	},
}

// Translator returns a translate function bound to the given locale.
func Translator(locale string) func(key string) string {
	cat, ok := locales[locale]
	if !ok {
		cat = locales["en"]
	}
	fallback := locales["en"]

	return func(key string) string {
		if msg, ok := cat[key]; ok {
			return msg
		}
		if msg, ok := fallback[key]; ok {
			return msg
		}
		return key
	}
}
