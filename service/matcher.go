package service

import (
	"math/rand/v2"
	"strings"

	"singlish-bot/internal/fuzzy"
	"singlish-bot/model"
	"singlish-bot/utils"
)

const DefaultCutoff = 0.6

// Chooser returns an index in [0, n). Tests inject a deterministic one.
type Chooser func(n int) int

func RandomChooser(n int) int { return rand.IntN(n) }

var ClarificationResponses = []string{
	"Mata eka therenne naha machan! Try 'kohomada' or 'help' kiyla! 🤔",
	"Hmm, mata eka understand karanna baha. Simple Singlish walata try karanna! 😅",
	"Aiyo, mata confused! Can you say that again in simpler words? 🤷‍♂️",
	"Sorry machan, that one I don't know. Ask me something else! 💭",
}

var DefaultResponses = []string{
	"Sorry machan, mata podi problem ekak! Try again? 😅",
	"Aiyo, something went wrong on my side. Poddak inna, try again! 🙏",
	"Mata dan reply karanna baha machan. Try again in a bit! 🔧",
}

func pick(choose Chooser, options []string) string {
	if len(options) == 0 {
		return ""
	}
	if choose == nil {
		choose = RandomChooser
	}
	i := choose(len(options))
	if i < 0 || i >= len(options) {
		i = 0
	}
	return options[i]
}

// Matcher resolves a normalised input against catalog trigger phrases
// by edit-distance similarity.
type Matcher struct {
	cutoff float64
	choose Chooser
}

func NewMatcher(cutoff float64, choose Chooser) *Matcher {
	if choose == nil {
		choose = RandomChooser
	}
	return &Matcher{cutoff: cutoff, choose: choose}
}

func (m *Matcher) Cutoff() float64 { return m.cutoff }

// Best returns the highest scoring phrase across active intents. Ties go to
// the higher priority intent, then the smaller phrase, then the intent name.
func (m *Matcher) Best(input string, catalog []model.Intent) (model.CandidateMatch, bool) {
	var (
		best  model.CandidateMatch
		found bool
	)
	for _, in := range catalog {
		if !in.Active || len(in.Responses) == 0 {
			continue
		}
		for _, p := range in.Phrases {
			phrase := utils.NormalizeInput(p)
			c := model.CandidateMatch{
				Phrase:   phrase,
				Intent:   in.Name,
				Priority: in.Priority,
				Score:    fuzzy.Similarity(input, phrase),
			}
			if !found || better(c, best) {
				best, found = c, true
			}
		}
	}
	return best, found
}

func better(a, b model.CandidateMatch) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.Phrase != b.Phrase {
		return a.Phrase < b.Phrase
	}
	return a.Intent < b.Intent
}

// Match never fails; anything under the cutoff resolves to the unknown
// intent with a clarification reply.
func (m *Matcher) Match(input string, catalog []model.Intent) model.ResolutionResult {
	best, ok := m.Best(input, catalog)
	if !ok || best.Score < m.cutoff {
		return model.ResolutionResult{
			Response:   pick(m.choose, ClarificationResponses),
			Intent:     model.IntentUnknown,
			Confidence: 0,
			Strategy:   model.StrategyCachedRule,
		}
	}

	var responses []string
	for _, in := range catalog {
		if in.Name == best.Intent {
			responses = in.Responses
			break
		}
	}
	return model.ResolutionResult{
		Response:   personalise(m.choose, responses, utils.ExtractName(input)),
		Intent:     best.Intent,
		Confidence: best.Score,
		Strategy:   model.StrategyCachedRule,
	}
}

const namePlaceholder = "{name}"

// personalise picks a reply. Replies carrying the name placeholder are only
// used when the user gave a name, unless no other reply exists.
func personalise(choose Chooser, responses []string, name string) string {
	var named, plain []string
	for _, r := range responses {
		if strings.Contains(r, namePlaceholder) {
			named = append(named, r)
		} else {
			plain = append(plain, r)
		}
	}
	if name != "" && len(named) > 0 {
		return strings.ReplaceAll(pick(choose, named), namePlaceholder, name)
	}
	if len(plain) > 0 {
		return pick(choose, plain)
	}
	return strings.ReplaceAll(pick(choose, responses), namePlaceholder, "machan")
}
