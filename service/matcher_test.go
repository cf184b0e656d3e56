package service

import (
	"os"
	"slices"
	"testing"

	"gopkg.in/yaml.v3"

	"singlish-bot/model"
)

func first(int) int { return 0 }

func seedCatalog(t *testing.T) []model.Intent {
	t.Helper()
	data, err := os.ReadFile("../config/intents.yaml")
	if err != nil {
		t.Fatalf("read seed: %v", err)
	}
	var cfg model.IntentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("decode seed: %v", err)
	}
	return cfg.Intents
}

func TestMatchSeedCatalog(t *testing.T) {
	catalog := seedCatalog(t)
	m := NewMatcher(DefaultCutoff, first)

	cases := []struct {
		input  string
		intent string
		exact  bool
	}{
		{input: "kohomada", intent: "greeting", exact: true},
		{input: "kohomda", intent: "greeting"},
		{input: "oya kawda", intent: "ask_name", exact: true},
		{input: "see u", intent: "goodbye"},
		{input: "thank you", intent: "thanks", exact: true},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			res := m.Match(tc.input, catalog)
			if res.Intent != tc.intent {
				t.Fatalf("intent: want=%s got=%s (%.3f)", tc.intent, res.Intent, res.Confidence)
			}
			if res.Confidence < DefaultCutoff {
				t.Fatalf("confidence below cutoff: %v", res.Confidence)
			}
			if tc.exact && res.Confidence != 1 {
				t.Fatalf("exact phrase: want=1 got=%v", res.Confidence)
			}
			if res.Strategy != model.StrategyCachedRule {
				t.Fatalf("strategy: %s", res.Strategy)
			}
		})
	}
}

func TestMatchGibberishIsUnknown(t *testing.T) {
	m := NewMatcher(DefaultCutoff, first)
	res := m.Match("asdkjasd", seedCatalog(t))
	if res.Intent != model.IntentUnknown || res.Confidence != 0 {
		t.Fatalf("want unknown/0 got %s/%v", res.Intent, res.Confidence)
	}
	if !slices.Contains(ClarificationResponses, res.Response) {
		t.Fatalf("response not a clarification: %q", res.Response)
	}
}

func TestMatchEmptyCatalog(t *testing.T) {
	res := NewMatcher(DefaultCutoff, first).Match("hello", nil)
	if res.Intent != model.IntentUnknown {
		t.Fatalf("empty catalog: want unknown got %s", res.Intent)
	}
}

func TestMatchTieBreak(t *testing.T) {
	intent := func(name string, priority int, phrases ...string) model.Intent {
		return model.Intent{Name: name, Priority: priority, Active: true, Phrases: phrases, Responses: []string{name}}
	}

	t.Run("priority wins", func(t *testing.T) {
		catalog := []model.Intent{intent("low", 2, "hello"), intent("high", 9, "hello")}
		if got := NewMatcher(DefaultCutoff, first).Match("hello", catalog).Intent; got != "high" {
			t.Fatalf("want=high got=%s", got)
		}
	})

	t.Run("smaller phrase wins at equal priority", func(t *testing.T) {
		// both one edit from "abcd"
		catalog := []model.Intent{intent("b", 5, "abce"), intent("a", 5, "abcf")}
		best, _ := NewMatcher(DefaultCutoff, first).Best("abcd", catalog)
		if best.Phrase != "abce" || best.Intent != "b" {
			t.Fatalf("want abce/b got %s/%s", best.Phrase, best.Intent)
		}
	})

	t.Run("order independent", func(t *testing.T) {
		catalog := []model.Intent{intent("x", 5, "hi"), intent("y", 5, "hi")}
		m := NewMatcher(DefaultCutoff, first)
		a := m.Match("hi", catalog).Intent
		slices.Reverse(catalog)
		if b := m.Match("hi", catalog).Intent; a != b || a != "x" {
			t.Fatalf("tie break depends on order: %s vs %s", a, b)
		}
	})
}

func TestMatchSkipsInactiveAndNormalisesPhrases(t *testing.T) {
	catalog := []model.Intent{
		{Name: "off", Priority: 10, Active: false, Phrases: []string{"hello"}, Responses: []string{"off"}},
		{Name: "on", Priority: 1, Active: true, Phrases: []string{"  HeLLo "}, Responses: []string{"on"}},
	}
	res := NewMatcher(DefaultCutoff, first).Match("hello", catalog)
	if res.Intent != "on" || res.Confidence != 1 {
		t.Fatalf("want on/1 got %s/%v", res.Intent, res.Confidence)
	}
}

func TestMatchChooserSelectsResponse(t *testing.T) {
	catalog := []model.Intent{{Name: "thanks", Priority: 6, Active: true, Phrases: []string{"thanks"}, Responses: []string{"a", "b", "c"}}}
	last := func(n int) int { return n - 1 }
	if got := NewMatcher(DefaultCutoff, last).Match("thanks", catalog).Response; got != "c" {
		t.Fatalf("chooser ignored: got %q", got)
	}
	outOfRange := func(int) int { return 99 }
	if got := NewMatcher(DefaultCutoff, outOfRange).Match("thanks", catalog).Response; got != "a" {
		t.Fatalf("out of range chooser: got %q", got)
	}
}

func TestMatchPersonalisesIntroductions(t *testing.T) {
	catalog := []model.Intent{{
		Name: "self_intro", Priority: 5, Active: true,
		Phrases:   []string{"my name is"},
		Responses: []string{"Nice to meet you {name}!", "Nice to meet you!"},
	}}
	m := NewMatcher(DefaultCutoff, first)

	res := m.Match("my name is kasun", catalog)
	if res.Intent != "self_intro" || res.Response != "Nice to meet you Kasun!" {
		t.Fatalf("named intro: %+v", res)
	}
	if got := m.Match("my name is", catalog).Response; got != "Nice to meet you!" {
		t.Fatalf("intro without a name: got %q", got)
	}

	onlyNamed := []model.Intent{{
		Name: "self_intro", Priority: 5, Active: true,
		Phrases: []string{"my name is"}, Responses: []string{"Hi {name}!"},
	}}
	if got := m.Match("my name is", onlyNamed).Response; got != "Hi machan!" {
		t.Fatalf("placeholder left unfilled: got %q", got)
	}
}

func TestMatcherCutoff(t *testing.T) {
	if got := NewMatcher(0.75, first).Cutoff(); got != 0.75 {
		t.Fatalf("Cutoff: want=0.75 got=%v", got)
	}
}
