package classifier

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Label is the verdict for one text fragment pulled out of an article container.
type Label string

const (
	Body   Label = "body"
	Chrome Label = "chrome" // interface text: buttons, share bars, image labels
	Short  Label = "short"
)

type Classifier struct {
	minLength int
}

// New returns a classifier that labels fragments shorter than minLength runes as Short.
func New(minLength int) *Classifier { return &Classifier{minLength: minLength} }

// leading words that mark UI chrome rather than prose
var chromeRe = regexp.MustCompile(`(?i)^\W*(image|images|photo|photos|picture|click|download|share|tweet|print|subscribe|advertisement|read more)\b`)
var creditRe = regexp.MustCompile(`(?i)^\W*(credit|courtesy|source|caption)\s*:`)

func (c *Classifier) Classify(fragment string) Label {
	text := strings.TrimSpace(fragment)
	if utf8.RuneCountInString(text) < c.minLength {
		return Short
	}
	if chromeRe.MatchString(text) || creditRe.MatchString(text) {
		return Chrome
	}
	return Body
}

// Keep reports whether fragment should stay in the extracted article.
func (c *Classifier) Keep(fragment string) bool {
	return c.Classify(fragment) == Body
}
