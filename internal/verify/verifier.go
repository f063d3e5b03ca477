// Package verify checks memory-referencing language in a candidate response
// against what the user actually said.
package verify

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rcliao/response-guard/internal/lexicon"
	"github.com/rcliao/response-guard/internal/memory"
	"github.com/rcliao/response-guard/internal/model"
)

const (
	DefaultNewSessionTurns = 3
	DefaultRecentInputs    = 5

	// establishedCoverage is the share of a claim's content words that must
	// be found in the session for the claim to stand.
	establishedCoverage = 0.5
)

// ErrUnparsable is returned when a reference phrase has no usable clause.
var ErrUnparsable = errors.New("memory reference has no content clause")

var referenceRe = regexp.MustCompile(`(?i)\b(` +
	`as (?:we(?:['’]ve| have)? )?(?:discussed|talked about|spoke about|spoken about)|` +
	`we(?:['’]ve| have)? (?:discussed|talked about|spoke about|spoken about|covered|gone over)|` +
	`last time we(?: talked| spoke| met| chatted)?|` +
	`i remember|i recall|earlier you said|last time you|` +
	`(?:as |like )?you(?:['’]ve| have)? (?:mentioned|said|told me|shared|brought up)` +
	`)\b[,:]?\s*(?:that\s+|how\s+)?([^.!?;]*)`)

// Claim is one memory reference found in a response.
type Claim struct {
	Phrase string
	Clause string
	// Span is the full matched text, phrase and clause.
	Span string
}

// Claims extracts every memory reference in text, in order.
func Claims(text string) []Claim {
	var out []Claim
	for _, m := range referenceRe.FindAllStringSubmatch(text, -1) {
		out = append(out, Claim{
			Phrase: strings.ToLower(m[1]),
			Clause: strings.TrimSpace(m[2]),
			Span:   strings.TrimSpace(m[0]),
		})
	}
	return out
}

// HasMemoryReference reports whether text contains memory-referencing language.
func HasMemoryReference(text string) bool {
	return referenceRe.MatchString(text)
}

// Options configures a Verifier.
type Options struct {
	// NewSessionTurns is the number of prior user turns below which a session
	// counts as new and unverified references are severe.
	NewSessionTurns int
	// RecentInputs bounds how many earlier user inputs count as recent.
	RecentInputs int
}

// Verifier is the memory verifier.
type Verifier struct {
	opts Options
}

// New creates a verifier, filling unset options with defaults.
func New(opts Options) *Verifier {
	if opts.NewSessionTurns <= 0 {
		opts.NewSessionTurns = DefaultNewSessionTurns
	}
	if opts.RecentInputs <= 0 {
		opts.RecentInputs = DefaultRecentInputs
	}
	return &Verifier{opts: opts}
}

// Input is what the verifier sees for one turn.
type Input struct {
	Response  string
	UserInput string
	// History holds earlier user inputs, oldest first.
	History []string
	// Memory is the session store; nil is treated as empty.
	Memory *memory.Store
}

// Verify returns a flag for every unsubstantiated memory reference.
func (v *Verifier) Verify(in Input) []model.Flag {
	claims := Claims(in.Response)
	if len(claims) == 0 {
		return nil
	}

	turns := len(in.History)
	var stored []string
	if in.Memory != nil {
		if n := in.Memory.UserTurns(); n > turns {
			turns = n
		}
		stored = in.Memory.Contents(model.SpeakerUser)
	}
	isNew := turns < v.opts.NewSessionTurns

	current := lexicon.StemSet(in.UserInput)
	recent := in.History
	if len(recent) > v.opts.RecentInputs {
		recent = recent[len(recent)-v.opts.RecentInputs:]
	}
	session := lexicon.StemSet(append(append(append([]string(nil), recent...), stored...), in.UserInput)...)

	var flags []model.Flag
	for _, c := range claims {
		var err error
		if isNew {
			err = checkExact(c, current)
		} else {
			err = checkCoverage(c, session)
		}
		switch {
		case err == nil:
		case errors.Is(err, ErrUnparsable):
			flags = append(flags, model.Flag{
				Type:          model.CategoryUnsubstantiated,
				Description:   fmt.Sprintf("could not verify memory reference %q", c.Phrase),
				Severity:      model.SeverityMedium,
				SourcePattern: "memory_verifier",
				Span:          c.Span,
			})
		case isNew:
			flags = append(flags, model.Flag{
				Type:          model.CategoryFalseSharing,
				Description:   fmt.Sprintf("claims shared history %q in a new session", c.Span),
				Severity:      model.SeveritySevere,
				SourcePattern: "memory_verifier",
				Span:          c.Span,
			})
		default:
			flags = append(flags, model.Flag{
				Type:          model.CategoryUnsubstantiated,
				Description:   fmt.Sprintf("memory reference %q not found in session history", c.Span),
				Severity:      model.SeverityMedium,
				SourcePattern: "memory_verifier",
				Span:          c.Span,
			})
		}
	}
	return flags
}

var errNotFound = errors.New("claim not found")

// checkExact requires every content word of the clause in the current input.
func checkExact(c Claim, current map[string]bool) error {
	cov, n := lexicon.Coverage(c.Clause, current)
	if n == 0 {
		return fmt.Errorf("%q: %w", c.Phrase, ErrUnparsable)
	}
	if cov < 1 {
		return errNotFound
	}
	return nil
}

func checkCoverage(c Claim, session map[string]bool) error {
	cov, n := lexicon.Coverage(c.Clause, session)
	if n == 0 {
		return fmt.Errorf("%q: %w", c.Phrase, ErrUnparsable)
	}
	if cov < establishedCoverage {
		return errNotFound
	}
	return nil
}
