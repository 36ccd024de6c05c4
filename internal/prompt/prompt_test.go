package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/quillrook/songsmith/internal/history"
)

func baseParams() Params {
	return Params{
		Model:       "gemini-2.0-flash",
		ArtistName:  "Velvet Static",
		ArtistStyle: "dreamy shoegaze with wall-of-sound guitars",
		Creativity:  Inspired,
		Language:    "English",
	}
}

func TestParseCreativity(t *testing.T) {
	for _, level := range []int{0, 25, 50, 75, 100} {
		if _, err := ParseCreativity(level); err != nil {
			t.Errorf("ParseCreativity(%d): %v", level, err)
		}
	}
	for _, level := range []int{-1, 10, 33, 101} {
		if _, err := ParseCreativity(level); err == nil {
			t.Errorf("ParseCreativity(%d): expected error", level)
		}
	}
}

func TestFiveTiersAreTextuallyDistinct(t *testing.T) {
	tiers := []Creativity{Identical, Subtle, Inspired, Experimental, Wildcard}
	seen := make(map[string]Creativity)
	for _, tier := range tiers {
		p := baseParams()
		p.Creativity = tier
		req := Build(p)
		if prev, dup := seen[req.Instructions]; dup {
			t.Errorf("tiers %v and %v produced identical instructions", prev, tier)
		}
		seen[req.Instructions] = tier
	}

	// Level 0 mandates strict adherence; level 100 invites deconstruction.
	p := baseParams()
	p.Creativity = Identical
	if got := Build(p).Instructions; !strings.Contains(got, "strictly faithful") {
		t.Error("Identical tier should mandate strict adherence")
	}
	p.Creativity = Wildcard
	if got := Build(p).Instructions; !strings.Contains(got, "Deconstruct") {
		t.Error("Wildcard tier should invite deconstruction")
	}
}

func TestDenylistPresent(t *testing.T) {
	req := Build(baseParams())
	if !strings.Contains(req.Instructions, "virtual reality") ||
		!strings.Contains(req.Instructions, "the metaverse") {
		t.Error("expected the cliché denylist in the instructions")
	}
}

func TestHistoryConstraints(t *testing.T) {
	p := baseParams()
	p.History = history.Entry{
		Titles: []string{"Glass Tide", "Static Bloom"},
		Themes: []string{ThemePrefix + "a lighthouse keeper's last night", "city rain"},
		Lyrics: []string{"[Verse 1]\nThe   harbor lights\n\n(whispered)\ngo dim"},
	}
	req := Build(p)

	// Titles verbatim.
	if !strings.Contains(req.Instructions, "Glass Tide") || !strings.Contains(req.Instructions, "Static Bloom") {
		t.Error("expected prior titles verbatim")
	}
	// Theme boilerplate prefix stripped.
	if strings.Contains(req.Instructions, ThemePrefix) {
		t.Error("expected the suggestion prefix to be stripped from themes")
	}
	if !strings.Contains(req.Instructions, "a lighthouse keeper's last night") {
		t.Error("expected the suggested theme body to survive")
	}
	// Lyrics condensed: section tags gone, whitespace collapsed.
	if strings.Contains(req.Instructions, "[Verse 1]") || strings.Contains(req.Instructions, "(whispered)") {
		t.Error("expected section tags stripped from lyric excerpts")
	}
	if !strings.Contains(req.Instructions, "The harbor lights go dim") {
		t.Error("expected condensed lyric excerpt")
	}
}

func TestCondenseLyricsTruncates(t *testing.T) {
	long := strings.Repeat("na ", 200)
	got := CondenseLyrics(long)
	if len(got) > 160 {
		t.Errorf("excerpt length = %d, want <= 160", len(got))
	}
}

func TestCondenseLyricsKeepsRunesWhole(t *testing.T) {
	long := strings.Repeat("夜の海辺で歌う ", 40)
	got := CondenseLyrics(long)
	if len(got) > 160 {
		t.Errorf("excerpt length = %d, want <= 160", len(got))
	}
	if !utf8.ValidString(got) {
		t.Errorf("excerpt %q is not valid UTF-8", got)
	}
}

func TestSchemaDefault(t *testing.T) {
	req := Build(baseParams())
	if req.Schema == nil {
		t.Fatal("expected a schema")
	}
	if len(req.Schema.Required) != 3 {
		t.Errorf("Required = %v, want title, style, lyrics", req.Schema.Required)
	}
	if _, ok := req.Schema.Properties["style"]; !ok {
		t.Error("expected a style property")
	}
	if !strings.Contains(req.Schema.Properties["style"].Description, "250") {
		t.Error("expected the style length bound in its description")
	}
}

func TestSchemaNarrowsForSingleFieldRegenerate(t *testing.T) {
	p := baseParams()
	p.Only = FieldTitle
	req := Build(p)
	if len(req.Schema.Properties) != 1 || len(req.Schema.Required) != 1 {
		t.Fatalf("schema = %+v, want single title field", req.Schema)
	}
	if req.Schema.Required[0] != "title" {
		t.Errorf("Required = %v, want [title]", req.Schema.Required)
	}
	if !strings.Contains(req.Instructions, "only a new title") {
		t.Error("expected a single-field instruction")
	}
}

func TestInstrumentalRedefinesLyricsField(t *testing.T) {
	p := baseParams()
	p.Instrumental = true
	req := Build(p)

	if !strings.Contains(req.Schema.Properties["lyrics"].Description, "non-singable") {
		t.Error("expected the lyrics schema field redefined as an arrangement description")
	}
	if !strings.Contains(req.Instructions, "instrumental") {
		t.Error("expected instrumental instructions")
	}
	if strings.Contains(req.Instructions, "Write the lyrics in") {
		t.Error("language rule should not apply to instrumental pieces")
	}
}

func TestSungLyricsRules(t *testing.T) {
	p := baseParams()
	p.Language = "Portuguese"
	req := Build(p)

	if !strings.Contains(req.Instructions, "Write the lyrics in Portuguese") {
		t.Error("expected the target language rule")
	}
	if !strings.Contains(req.Instructions, "Do not mention the artist's name") {
		t.Error("expected the no-artist-name rule")
	}
	if !strings.Contains(req.Instructions, "[Verse 1]") || !strings.Contains(req.Instructions, "blank line") {
		t.Error("expected section tag and blank line formatting rules")
	}
}

func TestBuildThemeSuggestion(t *testing.T) {
	hist := history.Entry{Themes: []string{ThemePrefix + "midnight trains"}}
	req := BuildThemeSuggestion("gemini-2.0-flash", "Velvet Static", "shoegaze", hist)

	if req.Schema != nil {
		t.Error("theme suggestion must be a free-text request, not a schema request")
	}
	if !strings.Contains(req.Instructions, "midnight trains") {
		t.Error("expected prior themes in the avoid list")
	}
	if !strings.Contains(req.Instructions, "Velvet Static") {
		t.Error("expected the artist name")
	}
}
