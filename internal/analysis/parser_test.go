package analysis

import (
	"encoding/json"
	"testing"
)

func TestParseSandwich(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Classification
	}{
		{name: "bare", text: "#9&7![1,0.2,0.8]#9&7!", want: Classification{1, 0.2, 0.8}},
		{name: "surrounded", text: "reasoning...\n#9&7![0,0.9,0.1]#9&7! done", want: Classification{0, 0.9, 0.1}},
		{name: "integers", text: "#9&7![1,0,1]#9&7!", want: Classification{1, 0, 1}},
		{name: "unclamped", text: "#9&7![3,1.5,2.25]#9&7!", want: Classification{3, 1.5, 2.25}},
		{name: "first match wins", text: "#9&7![0,0.6,0.4]#9&7! #9&7![1,0.1,0.9]#9&7!", want: Classification{0, 0.6, 0.4}},
	}
	p := DefaultParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, strategy := p.ParseWith(tt.text)
			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
			if strategy != "sandwich" {
				t.Fatalf("expected sandwich strategy, got %s", strategy)
			}
		})
	}
}

func TestParseFallsBackToDefault(t *testing.T) {
	inputs := []string{
		"",
		"no markers here",
		"#9&7![1,0.2]#9&7!",
		"#9&7![a,0.2,0.8]#9&7!",
		"#9&7![-1,0.2,0.8]#9&7!",
		"#9&7![1,0.2,0.8]",
		"{not json",
		`[{"role":"user","content":[{"text":{"value":"#9&7!"}}]}]`,
	}
	p := DefaultParser()
	for _, in := range inputs {
		got, strategy := p.ParseWith(in)
		if got != DefaultClassification() {
			t.Fatalf("input %q: expected default, got %+v", in, got)
		}
		if strategy != "default" {
			t.Fatalf("input %q: expected default strategy, got %s", in, strategy)
		}
	}
}

func TestParseEnvelope(t *testing.T) {
	type text struct {
		Value string `json:"value"`
	}
	type content struct {
		Text *text `json:"text,omitempty"`
	}
	type message struct {
		Role    string    `json:"role"`
		Content []content `json:"content"`
	}
	msgs := []message{
		{Role: "user", Content: []content{{Text: &text{Value: "classify this"}}}},
		{Role: "assistant", Content: []content{{Text: &text{Value: "thinking"}}}},
		{Role: "assistant", Content: []content{{Text: &text{Value: "result #9&7![1,0.3,0.7]#9&7!"}}}},
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// json.Marshal escapes '&' as \u0026, hiding the marker from the raw body.
	got, strategy := DefaultParser().ParseWith(string(raw))
	if strategy != "envelope" {
		t.Fatalf("expected envelope strategy, got %s", strategy)
	}
	want := Classification{PredictedClass: 1, Probability0: 0.3, Probability1: 0.7}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestParseEnvelopeIgnoresMissingText(t *testing.T) {
	body := `[{"role":"assistant","content":[]},{"role":"assistant","content":[{"image":{}}]}]`
	if got := DefaultParser().Parse(body); got != DefaultClassification() {
		t.Fatalf("expected default, got %+v", got)
	}
}

type panicStrategy struct{}

func (panicStrategy) Name() string { return "panic" }

func (panicStrategy) Parse(string) (Classification, bool) { panic("boom") }

func TestParserRecoversStrategyPanic(t *testing.T) {
	p := &Parser{Strategies: []Strategy{panicStrategy{}, SandwichStrategy{}}}
	got, strategy := p.ParseWith("#9&7![1,0.1,0.9]#9&7!")
	if strategy != "sandwich" || got.PredictedClass != 1 {
		t.Fatalf("expected sandwich after panic, got %s %+v", strategy, got)
	}

	var nilParser *Parser
	if got := nilParser.Parse("anything"); got != DefaultClassification() {
		t.Fatalf("nil parser should return default, got %+v", got)
	}
}
