package i18n

// Translator retrieves localized messages for error codes.
// data provides optional metadata to embed in the message (for example,
// "path" or "type").
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

var dictionaries = map[string]map[string]string{
	"en": {
		"schema":                 "invalid type configuration",
		"empty_type":             "type has no serializable properties",
		"missing_identity":       "unknown object identity",
		"missing_filter":         "no filter registered",
		"polymorphic_resolution": "cannot resolve concrete type",
		"unrecognized_property":  "unrecognized property",
		"depth_exceeded":         "maximum nesting depth exceeded",
		"codec":                  "codec failure",
		"invalid_type":           "invalid type",
		"required":               "required property missing",
		"duplicate_key":          "duplicate key",
		"parse_error":            "parse error",
	},
	"ja": {
		"schema":                 "型設定が不正です",
		"empty_type":             "シリアライズ可能なプロパティがありません",
		"missing_identity":       "オブジェクト識別子が見つかりません",
		"missing_filter":         "フィルタが登録されていません",
		"polymorphic_resolution": "具象型を解決できません",
		"unrecognized_property":  "認識できないプロパティです",
		"depth_exceeded":         "ネストの深さが上限を超えました",
		"codec":                  "コーデックエラー",
		"invalid_type":           "型が不正です",
		"required":               "必須プロパティが不足しています",
		"duplicate_key":          "キーが重複しています",
		"parse_error":            "解析エラー",
	},
}

func (t dictTranslator) Message(code string, data map[string]string) string {
	if msg, ok := dictionaries[t.lang][code]; ok {
		return msg
	}
	return code
}

var currentTranslator Translator = dictTranslator{lang: "en"}

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if _, ok := dictionaries[lang]; !ok {
		lang = "en"
	}
	currentTranslator = dictTranslator{lang: lang}
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		currentTranslator = dictTranslator{lang: "en"}
		return
	}
	currentTranslator = tr
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string { return currentTranslator.Message(code, data) }
