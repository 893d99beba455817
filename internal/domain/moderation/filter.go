package moderation

import (
	"regexp"
	"strings"
	"unicode"
)

// Category identifies which prohibited-content list a message matched.
type Category string

const (
	CategoryNone       Category = ""
	CategoryPayment    Category = "payment"
	CategoryContact    Category = "contact"
	CategoryAbuse      Category = "abuse"
	CategorySuspicious Category = "suspicious"
)

// Warning texts recorded in place of a blocked message.
const (
	WarningPayment    = "⚠️ Message blocked: Donateo is a free donation platform. Please don't discuss payments, prices or selling. All items must be given away for free."
	WarningContact    = "⚠️ Message blocked: for your safety, keep all coordination on Donateo. Don't share phone numbers, emails, social media or bank details, and share only a general area or landmark instead of a full address."
	WarningAbuse      = "⚠️ Message blocked: please keep the conversation respectful. Repeated misuse will be reported to the Donateo admins."
	WarningSuspicious = "⚠️ Message blocked: this message looks suspicious. If something seems wrong, please use the report button so an admin can review this chat."
)

// Verdict is the outcome of classifying one message.
type Verdict struct {
	Allowed  bool
	Category Category
	Warning  string
}

type rule struct {
	category Category
	warning  string
	matchers []matcher
}

type matcher func(lower string) bool

// Filter classifies free text against the prohibited-content lists. Rules are
// evaluated in priority order and the first match wins.
type Filter struct {
	rules []rule
}

// NewFilter returns a filter with the platform's fixed rule set.
func NewFilter() *Filter {
	return &Filter{rules: []rule{
		{
			category: CategoryPayment,
			warning:  WarningPayment,
			matchers: []matcher{
				containsAny("$", "₹", "€", "£"),
				words(
					"pay", "pays", "paid", "paying", "payment", "payments",
					"price", "prices", "pricing", "cost", "costs",
					"money", "cash", "rupee", "rupees", "rs", "inr",
					"dollar", "dollars", "usd", "euro", "euros",
					"buy", "buying", "sell", "selling", "sale", "fee", "fees", "charge", "charges",
					"upi", "paytm", "gpay", "venmo", "paypal",
				),
			},
		},
		{
			category: CategoryContact,
			warning:  WarningContact,
			matchers: []matcher{
				phoneNumber,
				regex(`[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`),
				words(
					"gmail", "yahoo", "hotmail", "outlook", "email", "e-mail",
					"whatsapp", "telegram", "signal", "instagram", "insta", "facebook", "snapchat", "twitter",
					"call me", "text me", "my number", "phone number", "mobile number",
					"bank account", "account number", "ifsc", "iban", "card number",
					"address", "house number", "flat number", "door number",
				),
			},
		},
		{
			category: CategoryAbuse,
			warning:  WarningAbuse,
			matchers: []matcher{
				words(
					"idiot", "stupid", "moron", "dumb", "loser", "shut up",
					"bastard", "bitch", "asshole", "fuck", "fucking", "shit", "crap", "bloody",
				),
			},
		},
		{
			category: CategorySuspicious,
			warning:  WarningSuspicious,
			matchers: []matcher{
				words(
					"scam", "scammer", "fraud", "illegal", "weapon", "weapons", "gun", "guns",
					"drug", "drugs", "stolen", "counterfeit", "fake id", "hack", "hacked",
				),
			},
		},
	}}
}

// Classify reports whether text may be posted and, when it may not, which
// warning replaces it.
func (f *Filter) Classify(text string) Verdict {
	lower := strings.ToLower(text)
	for _, r := range f.rules {
		for _, m := range r.matchers {
			if m(lower) {
				return Verdict{Allowed: false, Category: r.category, Warning: r.warning}
			}
		}
	}
	return Verdict{Allowed: true}
}

func containsAny(needles ...string) matcher {
	return func(lower string) bool {
		for _, n := range needles {
			if strings.Contains(lower, n) {
				return true
			}
		}
		return false
	}
}

func regex(pattern string) matcher {
	re := regexp.MustCompile(pattern)
	return re.MatchString
}

// words matches whole words or phrases only, so "rs" does not fire on "hours".
func words(list ...string) matcher {
	quoted := make([]string, 0, len(list))
	for _, w := range list {
		quoted = append(quoted, regexp.QuoteMeta(w))
	}
	re := regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
	return re.MatchString
}

var (
	// phoneCandidate is a run of digit groups joined by at most one space,
	// dash or dot, with optional brackets around an area code.
	phoneCandidate = regexp.MustCompile(`\+?\(?\d+\)?(?:[ .\-]\(?\d+\)?)*`)
	// calendarToken matches ISO dates and clock times, which are not phone numbers.
	calendarToken = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}:\d{2}(?::\d{2})?\b`)
)

// phoneNumber reports whether text contains a phone-shaped run of ten or more
// digits. Dates and times are blanked out first so a pickup slot such as
// "2025-01-10 10:00" never reads as a number.
func phoneNumber(lower string) bool {
	stripped := calendarToken.ReplaceAllString(lower, " ; ")
	for _, candidate := range phoneCandidate.FindAllString(stripped, -1) {
		digits := 0
		for _, r := range candidate {
			if unicode.IsDigit(r) {
				digits++
			}
		}
		if digits >= 10 {
			return true
		}
	}
	return false
}
