package lexicon

import (
	"regexp"
	"strings"
)

var selfHarmRe = regexp.MustCompile(`(?i)\b(` + strings.Join([]string{
	`kill(ing)? myself`,
	`end(ing)? (it all|my life)`,
	`suicid(e|al)`,
	`(don['’]?t|do not) want to (be alive|live|exist|wake up)`,
	`want to die`,
	`wish i (was|were) dead`,
	`better off dead`,
	`hurt(ing)? myself`,
	`harm(ing)? myself`,
	`self[- ]harm`,
	`cut(ting)? myself`,
	`no reason to live`,
	`take my (own )?life`,
	`not (be )?here anymore`,
}, "|") + `)\b`)

// IndicatesSelfHarm reports whether text contains self-harm or suicide language.
func IndicatesSelfHarm(text string) bool {
	return selfHarmRe.MatchString(text)
}

var crisisResourceRe = regexp.MustCompile(`(?i)\b(` + strings.Join([]string{
	`crisis`,
	`hotline`,
	`helpline`,
	`lifeline`,
	`988`,
	`911`,
	`112`,
	`emergency`,
	`samaritans`,
	`text line`,
	`mental health professional`,
	`reach out (to|for) (someone|help|support)`,
}, "|") + `)\b`)

// HasCrisisResources reports whether text points the reader to crisis support.
func HasCrisisResources(text string) bool {
	return crisisResourceRe.MatchString(text)
}

var greetingRe = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|hiya|howdy|greetings|good (morning|afternoon|evening)|nice to meet you|my name is|i'?m new( here)?|first time)\b`)

// IsGreeting reports whether text opens like a new conversation.
func IsGreeting(text string) bool {
	return greetingRe.MatchString(text)
}

var guidanceRe = regexp.MustCompile(`(?i)\b(support|professional|therapist|counsel+or|reach out|talk to someone|trusted|help is available|take care)\b`)

// HasGuidance reports whether text already suggests further support.
func HasGuidance(text string) bool {
	return guidanceRe.MatchString(text)
}
