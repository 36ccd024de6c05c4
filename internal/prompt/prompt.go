// Package prompt assembles natural-language instruction sets for the
// generative service. Everything here is pure: no I/O, no side effects.
package prompt

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/quillrook/songsmith/internal/history"
)

// MaxStyleLength bounds the style blurb the service is asked to produce.
const MaxStyleLength = 250

// ThemePrefix marks themes that were produced by the suggestion endpoint.
// It is stripped again when prior themes are folded into anti-repetition
// constraints.
const ThemePrefix = "Suggested theme: "

// lyricExcerptLimit bounds how much of each prior lyric body is quoted back
// to the service in anti-repetition constraints.
const lyricExcerptLimit = 160

// Creativity is one of five fixed ordinal tiers controlling how strictly
// generated output must adhere to an artist's stated style.
type Creativity int

const (
	Identical    Creativity = 0
	Subtle       Creativity = 25
	Inspired     Creativity = 50
	Experimental Creativity = 75
	Wildcard     Creativity = 100
)

// ParseCreativity validates a raw level against the fixed five-point scale.
func ParseCreativity(level int) (Creativity, error) {
	switch Creativity(level) {
	case Identical, Subtle, Inspired, Experimental, Wildcard:
		return Creativity(level), nil
	}
	return 0, fmt.Errorf("invalid creativity level %d: must be 0, 25, 50, 75, or 100", level)
}

// Name returns the tier's display name.
func (c Creativity) Name() string {
	switch c {
	case Identical:
		return "Identical"
	case Subtle:
		return "Subtle"
	case Inspired:
		return "Inspired"
	case Experimental:
		return "Experimental"
	default:
		return "Wildcard"
	}
}

// instruction returns the tier's style-adherence directive. Each tier maps
// to a distinct body that progressively relaxes adherence.
func (c Creativity) instruction() string {
	switch c {
	case Identical:
		return "Stay strictly faithful to the artist's established style. The song must sound like it could slot into their existing catalog unnoticed: same instrumentation, same structures, same lyrical register."
	case Subtle:
		return "Keep the artist's style clearly recognizable, but allow small, tasteful variations: an unusual chord here, a slightly different tempo or mood there. Nothing a longtime fan would find surprising."
	case Inspired:
		return "Use the artist's style as a strong starting point and take it somewhere fresh. Blend in one or two outside influences so the result feels like a confident evolution rather than an imitation."
	case Experimental:
		return "Treat the artist's style as loose inspiration only. Push well beyond their comfort zone with bold structural, rhythmic, or genre choices while keeping a thin thread back to who they are."
	default:
		return "Disregard expectations entirely. Deconstruct the artist's style, subvert it, or collide it with something alien. Aim for the unpredictable; the only failure mode is sounding safe."
	}
}

// Field names one of the generated output's components, for requests that
// regenerate just that part.
type Field string

const (
	FieldTitle  Field = "title"
	FieldStyle  Field = "style"
	FieldLyrics Field = "lyrics"
)

// Params are the inputs to a song concept request.
type Params struct {
	Model        string
	ArtistName   string
	ArtistStyle  string
	Theme        string
	Creativity   Creativity
	Instrumental bool
	Language     string
	Only         Field // when set, regenerate only this field
	History      history.Entry
}

// Request is a structured description of one generative call: a model id,
// free-text instructions, and (when present) the expected output schema.
type Request struct {
	Model        string
	Instructions string
	Schema       *Schema
}

// Schema names the required fields of a structured JSON response.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

// Property describes one schema field.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// avoidTopics is a fixed denylist of worn-out technology and virtual-reality
// clichés that generated concepts must steer clear of.
var avoidTopics = []string{
	"virtual reality",
	"VR headsets",
	"the metaverse",
	"cyberspace",
	"digital worlds",
	"simulations and simulated realities",
	"artificial intelligence",
	"neon-lit screens",
}

// Build maps the parameters onto a single structured request.
func Build(p Params) Request {
	lang := p.Language
	if lang == "" {
		lang = "English"
	}

	var b strings.Builder

	fmt.Fprintf(&b, "You are ghostwriting a new song concept for the fictional artist %q.\n", p.ArtistName)
	fmt.Fprintf(&b, "Their style: %s\n\n", p.ArtistStyle)

	fmt.Fprintf(&b, "Creativity tier: %s. %s\n\n", p.Creativity.Name(), p.Creativity.instruction())

	if theme := strings.TrimSpace(p.Theme); theme != "" {
		fmt.Fprintf(&b, "Requested theme or direction: %s\n\n", theme)
	} else {
		b.WriteString("No theme was requested; invent a fresh one that suits the artist.\n\n")
	}

	fmt.Fprintf(&b, "Never write about: %s.\n\n", strings.Join(avoidTopics, "; "))

	writeAntiRepetition(&b, p.History)

	switch p.Only {
	case FieldTitle:
		b.WriteString("Produce only a new title for this concept; do not write lyrics or a style blurb.\n")
	case FieldStyle:
		fmt.Fprintf(&b, "Produce only a new style blurb of at most %d characters; do not write lyrics or a title.\n", MaxStyleLength)
	case FieldLyrics:
		b.WriteString("Produce only new lyrics for this concept; do not write a title or style blurb.\n")
	}

	if p.Only == "" || p.Only == FieldLyrics {
		if p.Instrumental {
			b.WriteString("This is an instrumental piece. Instead of singable lyrics, the lyrics field must hold a structural arrangement description: sections, instrumentation, dynamics, and transitions. Nothing in it should be singable text.\n")
		} else {
			fmt.Fprintf(&b, "Write the lyrics in %s. ", lang)
			b.WriteString("Do not mention the artist's name or their genre anywhere in the lyrics.\n")
			b.WriteString("Structure the lyrics with bracketed section tags such as [Verse 1], [Chorus], [Bridge]. Separate sections with exactly one blank line.\n")
		}
	}

	return Request{
		Model:        p.Model,
		Instructions: b.String(),
		Schema:       buildSchema(p),
	}
}

// BuildThemeSuggestion produces the schema-less free-text request used to
// suggest a theme for the given artist. The reply is used verbatim.
func BuildThemeSuggestion(model, artistName, artistStyle string, hist history.Entry) Request {
	var b strings.Builder

	fmt.Fprintf(&b, "Suggest a single evocative songwriting theme for the fictional artist %q (%s).\n", artistName, artistStyle)
	fmt.Fprintf(&b, "Never suggest: %s.\n", strings.Join(avoidTopics, "; "))

	if themes := priorThemes(hist); len(themes) > 0 {
		b.WriteString("Avoid anything close to these already-used themes:\n")
		for _, t := range themes {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	}

	b.WriteString("Reply with the theme only: one sentence, no preamble, no quotes.\n")

	return Request{
		Model:        model,
		Instructions: b.String(),
	}
}

// writeAntiRepetition folds the artist's history into constraints that push
// the service away from repeating itself.
func writeAntiRepetition(b *strings.Builder, hist history.Entry) {
	if len(hist.Titles) > 0 {
		b.WriteString("Titles already used (do not reuse or closely echo any of them):\n")
		for _, t := range hist.Titles {
			fmt.Fprintf(b, "- %s\n", t)
		}
		b.WriteString("\n")
	}

	if themes := priorThemes(hist); len(themes) > 0 {
		b.WriteString("Themes already explored (find a different angle):\n")
		for _, t := range themes {
			fmt.Fprintf(b, "- %s\n", t)
		}
		b.WriteString("\n")
	}

	if len(hist.Lyrics) > 0 {
		b.WriteString("Openings of earlier lyrics (avoid their imagery and phrasing):\n")
		for _, l := range hist.Lyrics {
			if excerpt := CondenseLyrics(l); excerpt != "" {
				fmt.Fprintf(b, "- %s\n", excerpt)
			}
		}
		b.WriteString("\n")
	}
}

// priorThemes returns the recorded themes with the suggestion boilerplate
// prefix stripped.
func priorThemes(hist history.Entry) []string {
	var themes []string
	for _, t := range hist.Themes {
		t = strings.TrimSpace(strings.TrimPrefix(t, ThemePrefix))
		if t != "" {
			themes = append(themes, t)
		}
	}
	return themes
}

var (
	sectionTagRe = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// CondenseLyrics strips bracketed and parenthetical section tags from a
// lyric body, collapses whitespace, and truncates to a bounded prefix.
func CondenseLyrics(lyrics string) string {
	s := sectionTagRe.ReplaceAllString(lyrics, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if len(s) > lyricExcerptLimit {
		cut := lyricExcerptLimit
		// Back off to a rune boundary so the cut never splits a character.
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}

// buildSchema names the response fields the service must return. A set Only
// field narrows the schema to that single field.
func buildSchema(p Params) *Schema {
	lyricsDesc := "The complete song lyrics, with bracketed section tags and one blank line between sections."
	if p.Instrumental {
		lyricsDesc = "A non-singable structural and arrangement description of the instrumental piece."
	}

	props := map[string]Property{
		"title":  {Type: "STRING", Description: "The song title."},
		"style":  {Type: "STRING", Description: fmt.Sprintf("A style blurb of at most %d characters.", MaxStyleLength)},
		"lyrics": {Type: "STRING", Description: lyricsDesc},
	}

	if p.Only != "" {
		name := string(p.Only)
		return &Schema{
			Type:       "OBJECT",
			Properties: map[string]Property{name: props[name]},
			Required:   []string{name},
		}
	}

	return &Schema{
		Type:       "OBJECT",
		Properties: props,
		Required:   []string{"title", "style", "lyrics"},
	}
}
