package utils

import (
	"sort"
	"strings"
	"unicode"
)

var singlishParticles = map[string]struct{}{
	"lah": {}, "lor": {}, "meh": {}, "sia": {}, "leh": {}, "hor": {}, "ah": {}, "la": {},
}

var singlishWords = map[string]struct{}{
	"liddat": {}, "lidat": {}, "lidis": {}, "macam": {}, "machai": {}, "machan": {},
	"nangi": {}, "akka": {}, "aiya": {}, "aiyo": {}, "wah": {}, "shiok": {}, "steady": {},
	"chio": {}, "blur": {}, "sian": {}, "jialat": {}, "buay": {}, "tahan": {}, "paiseh": {},
	"kiasu": {}, "kiasi": {}, "bojio": {}, "chope": {}, "lepak": {}, "makan": {},
	"tapao": {}, "tabao": {}, "kena": {},
}

var sinhalaWords = map[string]struct{}{
	"kohomada": {}, "kohomadha": {}, "kohomda": {}, "kohoma": {}, "oyage": {}, "mage": {},
	"nama": {}, "mama": {}, "oya": {}, "api": {}, "mokakda": {}, "mokak": {}, "kawda": {},
	"koheda": {}, "kiyada": {}, "kiyanne": {}, "karanne": {}, "yanne": {}, "enawa": {},
	"hari": {}, "honda": {}, "naha": {}, "ow": {}, "mata": {}, "giya": {}, "awa": {},
	"kanna": {}, "bonawa": {}, "balanna": {}, "ahanna": {}, "katha": {}, "karanna": {},
	"denne": {}, "ganna": {}, "therenne": {}, "dannawa": {}, "adare": {}, "stuti": {},
	"stutiyi": {}, "bohoma": {}, "godak": {}, "tikak": {}, "loku": {}, "podi": {},
	"rassai": {}, "lassana": {}, "hodai": {}, "naraka": {}, "baya": {}, "ayubowan": {},
}

// TextFeatures describes how code-mixed an utterance is. It is recorded with
// analytics events and has no influence on matching.
type TextFeatures struct {
	Length            int      `json:"length"`
	WordCount         int      `json:"word_count"`
	HasQuestion       bool     `json:"has_question"`
	HasExclamation    bool     `json:"has_exclamation"`
	HasParticles      bool     `json:"has_singlish_particles"`
	HasSinhalaTerms   bool     `json:"has_sinhala_terms"`
	SinglishIntensity float64  `json:"singlish_intensity"`
	LanguageMix       []string `json:"language_mix"`
}

func ExtractFeatures(text string) TextFeatures {
	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	f := TextFeatures{
		Length:         len([]rune(text)),
		WordCount:      len(strings.Fields(text)),
		HasQuestion:    strings.Contains(text, "?"),
		HasExclamation: strings.Contains(text, "!"),
	}

	langs := map[string]struct{}{"english": {}}
	marked := 0
	for _, w := range words {
		hit := false
		if _, ok := singlishParticles[w]; ok {
			f.HasParticles = true
			langs["singlish"] = struct{}{}
			hit = true
		}
		if _, ok := singlishWords[w]; ok {
			langs["singlish"] = struct{}{}
			hit = true
		}
		if _, ok := sinhalaWords[w]; ok {
			f.HasSinhalaTerms = true
			langs["sinhala"] = struct{}{}
			hit = true
		}
		if hit {
			marked++
		}
	}
	if len(words) > 0 {
		f.SinglishIntensity = float64(marked) / float64(len(words))
	}

	f.LanguageMix = make([]string, 0, len(langs))
	for l := range langs {
		f.LanguageMix = append(f.LanguageMix, l)
	}
	sort.Strings(f.LanguageMix)
	return f
}

// Map flattens the features for storage in a JSON column.
func (f TextFeatures) Map() map[string]any {
	return map[string]any{
		"length":                 f.Length,
		"word_count":             f.WordCount,
		"has_question":           f.HasQuestion,
		"has_exclamation":        f.HasExclamation,
		"has_singlish_particles": f.HasParticles,
		"has_sinhala_terms":      f.HasSinhalaTerms,
		"singlish_intensity":     f.SinglishIntensity,
		"language_mix":           f.LanguageMix,
	}
}

// introductions are matched word by word; the name is the word that follows.
var introductions = [][]string{
	{"my", "name", "is"},
	{"i", "am"},
	{"i'm"},
	{"im"},
	{"mage", "nama"},
	{"mama"},
	{"mamai"},
	{"mamayi"},
}

// ExtractName returns the name a user introduces themselves with, such as
// "Kasun" from "my name is kasun", or "" when there is none.
func ExtractName(text string) string {
	words := strings.Fields(strings.ToLower(text))
	for _, intro := range introductions {
		for i := 0; i+len(intro) < len(words); i++ {
			if !hasPrefixWords(words[i:], intro) {
				continue
			}
			name := strings.Trim(words[i+len(intro)], ".,!?")
			if name == "" {
				continue
			}
			r := []rune(name)
			r[0] = unicode.ToUpper(r[0])
			return string(r)
		}
	}
	return ""
}

func hasPrefixWords(words, prefix []string) bool {
	for i, w := range prefix {
		if words[i] != w {
			return false
		}
	}
	return true
}
