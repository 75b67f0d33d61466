package command

import "testing"

func newTestClassifier() *Classifier {
	return NewClassifier(
		[]string{"!start", "start"},
		[]string{"!end", "end"},
		[]string{"!level"},
		[]string{"math", "english", "programming"},
	)
}

func TestParse(t *testing.T) {
	c := newTestClassifier()
	cases := []struct {
		text string
		want Command
	}{
		{"!start", Command{Kind: Start}},
		{"START", Command{Kind: Start}},
		{"  start  ", Command{Kind: Start}},
		{"!end", Command{Kind: End}},
		{"End", Command{Kind: End}},
		{"!level", Command{Kind: LevelToggle}},
		{"!LEVEL", Command{Kind: LevelToggle}},
		{"doing math today", Command{Kind: CategoryUpdate, Category: "math"}},
		{"ENGLISH homework", Command{Kind: CategoryUpdate, Category: "english"}},
		{"good luck everyone", Command{Kind: None}},
		{"", Command{Kind: None}},
		{"   ", Command{Kind: None}},
		{"starting soon", Command{Kind: None}}, // not an exact keyword, no category word
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			if got := c.Parse(tc.text); got != tc.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tc.text, got, tc.want)
			}
		})
	}
}

func TestParseFirstCategoryWins(t *testing.T) {
	c := newTestClassifier()
	got := c.Parse("english before math")
	// Configured order decides, not position in the message.
	if got.Kind != CategoryUpdate || got.Category != "math" {
		t.Errorf("Parse = %+v, want math (first configured match)", got)
	}
}

func TestParseKeywordBeatsCategory(t *testing.T) {
	c := NewClassifier([]string{"math"}, nil, nil, []string{"math"})
	if got := c.Parse("math"); got.Kind != Start {
		t.Errorf("exact keyword should win over category, got %+v", got)
	}
}
