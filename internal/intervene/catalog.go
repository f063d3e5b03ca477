package intervene

// CrisisMessage is returned verbatim whenever a turn needs the crisis path.
const CrisisMessage = "I'm really concerned about what you've shared, and your safety matters most right now. " +
	"If you are in immediate danger, please call your local emergency number (911 in the US). " +
	"You can call or text 988 to reach the Suicide & Crisis Lifeline at any time, or contact a crisis line where you live. " +
	"You don't have to go through this alone. Is there someone you trust who can be with you right now?"

// Catalog holds the phrases the handler splices into responses. Topic and
// emotion acknowledgment templates take one %s argument.
type Catalog struct {
	TopicAcks     []string
	EmotionAcks   []string
	GenericAcks   []string
	OpenQuestions []string
	NeutralAcks   []string
	Referrals     []string
	Supportive    []string
	Hedges        []string
	Guidance      []string
	NoDiagnosis   []string

	// TopicPhrases and EmotionPhrases render lexicon labels for templates.
	TopicPhrases   map[string]string
	EmotionPhrases map[string]string
}

// DefaultCatalog returns the built-in phrases.
func DefaultCatalog() Catalog {
	return Catalog{
		TopicAcks: []string{
			"It sounds like there's a lot going on with %s right now.",
			"I can hear that %s has been on your mind.",
			"Thank you for telling me what's happening with %s.",
		},
		EmotionAcks: []string{
			"It sounds like you've been feeling %s.",
			"Feeling %s like this can be really hard.",
		},
		GenericAcks: []string{
			"Thank you for telling me about this.",
			"I'm here and I'm listening.",
			"I'm glad you're talking about this.",
		},
		OpenQuestions: []string{
			"What feels most important to talk about right now?",
			"Would you like to tell me more about what's been going on?",
			"What has this been like for you?",
		},
		NeutralAcks: []string{
			"I want to make sure I understand what you're going through.",
			"I'd like to understand your situation better.",
		},
		Referrals: []string{
			"If these feelings continue, talking with a licensed therapist or counselor could really help.",
			"A mental health professional can offer support that goes beyond what I can provide here.",
		},
		Supportive: []string{
			"I'm here with you.",
			"What you're feeling makes sense.",
			"Thank you for trusting me with this.",
		},
		Hedges: []string{
			"If I'm misremembering anything, please correct me.",
			"Please tell me if I've got any of that wrong.",
		},
		Guidance: []string{
			"If it would help, talking with someone you trust or a counselor can offer more support.",
			"Remember that support is available whenever you need it.",
		},
		NoDiagnosis: []string{
			"I can't diagnose anything, but what you're describing sounds really difficult.",
		},
		TopicPhrases: map[string]string{
			"work":          "work",
			"relationships": "your relationship",
			"family":        "your family",
			"finances":      "money",
			"health":        "your health",
			"school":        "school",
			"friendship":    "your friendships",
			"loss":          "your loss",
			"self-esteem":   "how you see yourself",
		},
		EmotionPhrases: map[string]string{
			"sadness":    "really low",
			"anxiety":    "anxious",
			"anger":      "frustrated",
			"shame":      "hard on yourself",
			"joy":        "hopeful",
			"confusion":  "unsure",
			"exhaustion": "worn out",
		},
	}
}
