package analysis

import (
	"encoding/json"
	"regexp"
	"strconv"
)

// SandwichMarker delimits the structured result inside free text.
const SandwichMarker = "#9&7!"

var sandwichPattern = regexp.MustCompile(`#9&7!\[([0-9]+),([0-9]+\.?[0-9]*),([0-9]+\.?[0-9]*)\]#9&7!`)

// Strategy extracts a classification from a raw response, reporting whether it matched.
type Strategy interface {
	Name() string
	Parse(text string) (Classification, bool)
}

// Parser tries its strategies in order and falls back to DefaultClassification.
type Parser struct {
	Strategies []Strategy
}

// DefaultParser returns the sandwich-then-envelope chain.
func DefaultParser() *Parser {
	return &Parser{Strategies: []Strategy{SandwichStrategy{}, EnvelopeStrategy{}}}
}

// Parse never fails. A strategy that panics is treated as a miss.
func (p *Parser) Parse(text string) Classification {
	result, _ := p.ParseWith(text)
	return result
}

// ParseWith is Parse plus the name of the strategy that matched, or "default".
func (p *Parser) ParseWith(text string) (Classification, string) {
	if p != nil {
		for _, s := range p.Strategies {
			if s == nil {
				continue
			}
			if c, ok := tryStrategy(s, text); ok {
				return c, s.Name()
			}
		}
	}
	return DefaultClassification(), "default"
}

func tryStrategy(s Strategy, text string) (c Classification, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c, ok = Classification{}, false
		}
	}()
	return s.Parse(text)
}

// SandwichStrategy matches #9&7![class,p0,p1]#9&7! anywhere in the text.
// Values are passed through without range checks.
type SandwichStrategy struct{}

func (SandwichStrategy) Name() string { return "sandwich" }

func (SandwichStrategy) Parse(text string) (Classification, bool) {
	return matchSandwich(text)
}

func matchSandwich(text string) (Classification, bool) {
	m := sandwichPattern.FindStringSubmatch(text)
	if len(m) < 4 {
		return Classification{}, false
	}
	class, err := strconv.Atoi(m[1])
	if err != nil {
		return Classification{}, false
	}
	p0, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Classification{}, false
	}
	p1, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Classification{}, false
	}
	return Classification{PredictedClass: class, Probability0: p0, Probability1: p1}, true
}

// EnvelopeStrategy handles a JSON list of chat messages, running the sandwich
// match on each assistant message's first content text in order.
type EnvelopeStrategy struct{}

type envelopeMessage struct {
	Role    string `json:"role"`
	Content []struct {
		Text *struct {
			Value string `json:"value"`
		} `json:"text"`
	} `json:"content"`
}

func (EnvelopeStrategy) Name() string { return "envelope" }

func (EnvelopeStrategy) Parse(text string) (Classification, bool) {
	var messages []envelopeMessage
	if err := json.Unmarshal([]byte(text), &messages); err != nil {
		return Classification{}, false
	}
	for _, msg := range messages {
		if msg.Role != "assistant" || len(msg.Content) == 0 || msg.Content[0].Text == nil {
			continue
		}
		if c, ok := matchSandwich(msg.Content[0].Text.Value); ok {
			return c, true
		}
	}
	return Classification{}, false
}
