package textproc

// English stopwords dropped from normalized queries. Kept small on
// purpose: dropping too aggressively hurts short queries more than it
// helps long ones.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "been": {}, "being": {}, "but": {}, "by": {},
	"can": {}, "could": {}, "did": {}, "do": {}, "does": {},
	"for": {}, "from": {}, "had": {}, "has": {}, "have": {},
	"he": {}, "how": {}, "i": {}, "in": {}, "is": {}, "it": {},
	"may": {}, "might": {}, "not": {}, "of": {}, "on": {}, "or": {},
	"she": {}, "should": {}, "that": {}, "the": {}, "these": {},
	"they": {}, "this": {}, "those": {}, "to": {}, "was": {},
	"we": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"who": {}, "why": {}, "will": {}, "with": {}, "would": {},
	"you": {},
}

// IsStopword reports whether token is in the stopword set. The token is
// expected to be lowercase.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}
