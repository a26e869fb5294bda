package reading

import (
	"fmt"
	"math/rand"
	"strings"
	"unicode/utf8"
)

// RejectReason names the first heuristic that failed.
type RejectReason string

const (
	ReasonNone            RejectReason = ""
	ReasonTooShort        RejectReason = "too_short"
	ReasonRefusal         RejectReason = "refusal"
	ReasonMissingSections RejectReason = "missing_sections"
	ReasonWeakStructure   RejectReason = "weak_structure"
)

// DefaultRefusalPhrases signal a refusal or the model talking about itself.
var DefaultRefusalPhrases = []string{
	"i'm sorry", "i cannot", "i can't", "not able to", "do not have the ability",
	"as an ai", "as an assistant", "as a language model", "ai language model",
	"i don't see", "unable to determine", "cannot analyze", "cannot identify",
	"no palm", "no hand", "no image", "difficult to interpret", "unclear image",
}

// DefaultSectionMarkers covers the five reading sections, by name and emoji.
var DefaultSectionMarkers = []string{
	"overall impression", "🖐️",
	"relationships", "emotions", "❤️",
	"career", "wealth", "💼",
	"personality", "traits", "🧠",
	"hidden talents", "✨",
}

// DefaultFallbacks are shown in place of a reading that cannot be used.
var DefaultFallbacks = []string{
	"🔮 Your palm holds many secrets — the stars are still aligning. Try another photo with clearer lines and better lighting to see what they reveal.",
	"✨ The mystic energies are unclear with this image. Perhaps try with different lighting or showing more of your palm?",
	"🧙‍♂️ Hmm, the cosmic forces need a clearer view of your palm lines. Could you try another photo with your palm more fully open?",
	"🌙 The alignment of celestial bodies makes your palm reading difficult at this moment. Try with better lighting and your palm facing directly toward the camera.",
	"🌟 The ancient palmistry texts remain clouded. A clearer image showing your full palm with visible lines might reveal your destiny!",
	"🪄 The mystical connection is weak with this image. Try taking a photo with natural light and your palm fully extended.",
	"🔍 I need to see your palm lines more clearly. Try a photo with your hand relaxed and in good lighting.",
	"🧿 The cosmic energies need a better view of your palm. A photo with your hand against a contrasting background might help.",
	"🪞 Your palm's reflection in the cosmic mirror is blurry. A clearer, well-lit photo would help reveal your fortune.",
	"🌠 The stars cannot align properly with this image. Try photographing your palm straight-on with clear lighting.",
}

// QualityFilter decides whether provider output is fit to show.
type QualityFilter struct {
	MinLength      int
	MinMarkers     int
	MinParagraphs  int
	RefusalPhrases []string
	SectionMarkers []string
	Fallbacks      []string
}

// Verdict is the outcome of QualityFilter.Check.
type Verdict struct {
	Accepted bool
	Reason   RejectReason
	Detail   string
}

// DefaultQualityFilter returns the stock thresholds and lists.
func DefaultQualityFilter() QualityFilter {
	return QualityFilter{
		MinLength:      50,
		MinMarkers:     5,
		MinParagraphs:  4,
		RefusalPhrases: DefaultRefusalPhrases,
		SectionMarkers: DefaultSectionMarkers,
		Fallbacks:      DefaultFallbacks,
	}
}

// Merge returns f with every non-zero field of o applied on top.
func (f QualityFilter) Merge(o QualityFilter) QualityFilter {
	if o.MinLength > 0 {
		f.MinLength = o.MinLength
	}
	if o.MinMarkers > 0 {
		f.MinMarkers = o.MinMarkers
	}
	if o.MinParagraphs > 0 {
		f.MinParagraphs = o.MinParagraphs
	}
	if len(o.RefusalPhrases) > 0 {
		f.RefusalPhrases = o.RefusalPhrases
	}
	if len(o.SectionMarkers) > 0 {
		f.SectionMarkers = o.SectionMarkers
	}
	if len(o.Fallbacks) > 0 {
		f.Fallbacks = o.Fallbacks
	}
	return f
}

// Check applies the heuristics in order; the first one that fails wins.
func (f QualityFilter) Check(text string) Verdict {
	if n := utf8.RuneCountInString(text); n == 0 || n < f.MinLength {
		return Verdict{Reason: ReasonTooShort, Detail: fmt.Sprintf("%d chars", n)}
	}

	lower := strings.ToLower(text)
	for _, phrase := range f.RefusalPhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return Verdict{Reason: ReasonRefusal, Detail: phrase}
		}
	}

	found := 0
	for _, marker := range f.SectionMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			found++
		}
	}
	if found < f.MinMarkers {
		return Verdict{
			Reason: ReasonMissingSections,
			Detail: fmt.Sprintf("found %d/%d markers", found, len(f.SectionMarkers)),
		}
	}

	paragraphs := 0
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs++
		}
	}
	if paragraphs < f.MinParagraphs {
		return Verdict{Reason: ReasonWeakStructure, Detail: fmt.Sprintf("%d paragraphs", paragraphs)}
	}

	return Verdict{Accepted: true}
}

// Fallback picks one message uniformly from the pool.
func (f QualityFilter) Fallback() string {
	pool := f.Fallbacks
	if len(pool) == 0 {
		pool = DefaultFallbacks
	}
	return pool[rand.Intn(len(pool))]
}
