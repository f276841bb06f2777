package validation

import "strings"

type messages map[string]string

func (m messages) get(field, code string) string {
	if s, ok := m[field+"."+code]; ok {
		return s
	}
	if s, ok := m[field+".invalid"]; ok {
		return s
	}
	return m["default"]
}

func messagesFor(lang string) messages {
	if m, ok := catalogs[strings.ToLower(strings.TrimSpace(lang))]; ok {
		return m
	}
	return catalogs["en"]
}

var catalogs = map[string]messages{
	"en": {
		"default":               "Invalid value",
		"name.required":         "Name is required",
		"name.length":           "Name must be between 2 and 50 characters",
		"name.invalid":          "Name may only contain letters, spaces, hyphens and apostrophes",
		"phone.required":        "Phone number is required",
		"phone.invalid":         "Phone number must be exactly 10 digits",
		"email.required":        "Email is required",
		"email.invalid":         "Please enter a valid email address",
		"service.required":      "Please select a service",
		"service.invalid":       "Selected service is not available",
		"date.required":         "Date is required",
		"date.invalid":          "Please enter a valid date",
		"date.past":             "Date cannot be in the past",
		"time.required":         "Time is required",
		"address.required":      "Address is required",
		"birthDate.required":    "Date of birth is required",
		"birthDate.invalid":     "Please enter a valid date of birth",
		"birthDate.future":      "Date of birth cannot be in the future",
		"birthDate.range":       "Date of birth cannot be before 1900",
		"birthHours.required":   "Birth hour is required",
		"birthHours.range":      "Birth hour must be between 1 and 12",
		"birthMinutes.required": "Birth minute is required",
		"birthMinutes.range":    "Birth minute must be between 0 and 59",
		"birthPeriod.required":  "Please select AM or PM",
		"birthPeriod.invalid":   "Period must be AM or PM",
		"birthPlace.required":   "Place of birth is required",
		"birthPlace.length":     "Place of birth must be between 2 and 100 characters",
	},
	"hi": {
		"default":               "अमान्य मान",
		"name.required":         "नाम आवश्यक है",
		"name.length":           "नाम 2 से 50 अक्षरों के बीच होना चाहिए",
		"name.invalid":          "नाम में केवल अक्षर, स्पेस, हाइफ़न और एपॉस्ट्रॉफ़ी हो सकते हैं",
		"phone.required":        "फ़ोन नंबर आवश्यक है",
		"phone.invalid":         "फ़ोन नंबर ठीक 10 अंकों का होना चाहिए",
		"email.required":        "ईमेल आवश्यक है",
		"email.invalid":         "कृपया मान्य ईमेल पता दर्ज करें",
		"service.required":      "कृपया सेवा चुनें",
		"service.invalid":       "चुनी गई सेवा उपलब्ध नहीं है",
		"date.required":         "तारीख आवश्यक है",
		"date.invalid":          "कृपया मान्य तारीख दर्ज करें",
		"date.past":             "तारीख अतीत में नहीं हो सकती",
		"time.required":         "समय आवश्यक है",
		"address.required":      "पता आवश्यक है",
		"birthDate.required":    "जन्म तिथि आवश्यक है",
		"birthDate.invalid":     "कृपया मान्य जन्म तिथि दर्ज करें",
		"birthDate.future":      "जन्म तिथि भविष्य में नहीं हो सकती",
		"birthDate.range":       "जन्म तिथि 1900 से पहले की नहीं हो सकती",
		"birthHours.required":   "जन्म का घंटा आवश्यक है",
		"birthHours.range":      "जन्म का घंटा 1 से 12 के बीच होना चाहिए",
		"birthMinutes.required": "जन्म का मिनट आवश्यक है",
		"birthMinutes.range":    "जन्म का मिनट 0 से 59 के बीच होना चाहिए",
		"birthPeriod.required":  "कृपया AM या PM चुनें",
		"birthPeriod.invalid":   "अवधि AM या PM होनी चाहिए",
		"birthPlace.required":   "जन्म स्थान आवश्यक है",
		"birthPlace.length":     "जन्म स्थान 2 से 100 अक्षरों के बीच होना चाहिए",
	},
}
