package i18n

import "testing"

func TestTranslator_DefaultAndJapanese(t *testing.T) {
	// default is en
	if msg := T("polymorphic_resolution", nil); msg == "polymorphic_resolution" || msg == "" {
		t.Fatalf("expected a human message, got %q", msg)
	}

	SetLanguage("ja")
	if msg := T("invalid_type", nil); msg == "invalid type" {
		t.Fatalf("expected japanese message, got %q", msg)
	}

	// reset to en
	SetLanguage("en")
}

func TestTranslator_CodesCovered(t *testing.T) {
	for code := range dictionaries["en"] {
		if _, ok := dictionaries["ja"][code]; !ok {
			t.Errorf("ja dictionary misses %q", code)
		}
	}
	if msg := T("no_such_code", nil); msg != "no_such_code" {
		t.Fatalf("unknown codes fall back to the code, got %q", msg)
	}
}

type upper struct{}

func (upper) Message(code string, _ map[string]string) string { return "X:" + code }

func TestSetTranslator(t *testing.T) {
	SetTranslator(upper{})
	defer SetTranslator(nil)
	if msg := T("codec", nil); msg != "X:codec" {
		t.Fatalf("custom translator not used: %q", msg)
	}
}
