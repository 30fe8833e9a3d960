package intent

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

type infoPattern struct {
	infoType string
	re       *regexp.Regexp
}

// Checked first: a disclosure can ride inside a greeting ("hello my name is Dana").
var personalInfoPatterns = []infoPattern{
	{"name", regexp.MustCompile(`(?i:\b(?:my name is|my name's|call me|i'm called|i am called)\s+)([A-Za-z][A-Za-z'\-]*(?:\s+[A-Z][A-Za-z'\-]*)?)`)},
	{"current_role", regexp.MustCompile(`(?i)\b(?:i work as|i'm working as|i am working as|i currently work as|my current role is|my current job is|my job title is|i'm currently working as|i am currently working as)\s+(?:an?\s+)?([^.,!?\n]+)`)},
	{"experience", regexp.MustCompile(`(?i)\b(?:i have|i've got|i've had|i have had)\s+(\d+\+?\s*(?:years?|yrs?|months?)\b[^.,!?\n]*?\bexperience\b[^.,!?\n]*)`)},
	{"career_interest", regexp.MustCompile(`(?i)\b(?:i want to (?:work|be) (?:in|as)|i want to become|i'd like to (?:work|be) (?:in|as)|i would like to (?:work|be) (?:in|as)|my career goal is(?: to become| to work in)?|(?:i'm|i am) interested in (?:a career in|working in|working as)|(?:i'm|i am) looking for (?:a |an )?(?:job|role|position|career) (?:in|as))\s+(?:an?\s+)?([^.,!?\n]+)`)},
	{"skills", regexp.MustCompile(`(?i)\b(?:my skills (?:are|include)|(?:i'm|i am) (?:skilled|proficient) (?:in|with)|i know how to use)\s+([^.!?\n]+)`)},
	{"education", regexp.MustCompile(`(?i)\b(?:i have|i hold|i earned|i got|i completed|i have completed)\s+(?:an?\s+|my\s+)?((?:bachelor'?s?|master'?s?|phd|ph\.d\.?|mba|associate'?s?|doctorate|diploma|b\.?sc?|m\.?sc?)\b[^.!?\n]*)`)},
	{"education", regexp.MustCompile(`(?i)\bi (?:graduated|studied) (?:from|at)\s+([^.!?\n]+)`)},
}

var (
	greetingWords = []string{"hi", "hello", "hey", "hiya", "howdy", "greetings", "yo", "sup", "hola"}
	greetingLeads = []string{"good morning", "good afternoon", "good evening", "good day"}

	farewellWords = []string{"bye", "goodbye", "farewell", "cya", "later", "adios"}
	farewellLeads = []string{"good night", "goodnight", "see you", "see ya", "take care", "bye bye", "thanks bye", "thank you bye", "talk later"}

	confirmations = []string{
		"yes", "yeah", "yep", "yup", "sure", "ok", "okay", "of course", "correct", "right",
		"sounds good", "absolutely", "definitely", "yes please", "sure thing", "that's right",
		"go ahead", "please do", "do it", "y",
	}
	rejections = []string{
		"no", "nope", "nah", "no thanks", "no thank you", "not really", "not now", "never",
		"i don't think so", "not yet", "no way", "don't", "n",
	}

	jobPostingIndicators = []string{
		"job description", "position", "responsibilities", "requirements", "qualifications",
		"skills required", "we are looking for", "we're looking for", "the ideal candidate",
		"must have", "nice to have", "preferred", "benefits", "apply", "full-time", "part-time",
		"salary", "duties", "you will", "years of experience",
	}

	profileLookups = []string{
		"what's my name", "what is my name", "do you know my name", "do you remember my name",
		"what do you know about me", "what do you remember about me", "who am i",
		"what are my skills", "what is my current role", "what's my current role", "what do i do",
		"what's my experience", "what is my experience", "what did i tell you",
	}

	rewriteVerbs = regexp.MustCompile(`(?i)\b(?:rewrite|re-write|redo|re-do|revise|rework|improve|polish|refine|update|tweak|fix)\b`)
	// longest first so "work experience" beats "experience"
	resumeSections = []string{
		"professional summary", "work experience", "highlights of qualifications", "cover letter",
		"summary", "objective", "experience", "skills", "education", "highlights", "qualifications",
		"projects", "certifications", "achievements", "accomplishments", "headline", "bullet points",
	}

	careerKeywords = regexp.MustCompile(`(?i)\b(?:resumes?|cv|cover letters?|interviews?|interviewing|jobs?|careers?|salary|salaries|hiring|recruiters?|linkedin|promotions?|job search|applications?|applying|portfolio|networking|internships?|negotiat\w*|employers?|manager|workplace|references?|offer letter|ats|skills?|qualifications?|profession\w*|occupation|hire|resign\w*|layoffs?|raise)\b`)

	offTopicKeywords = regexp.MustCompile(`(?i)\b(?:pushups?|push-ups?|exercise|workout|cooking|cook|recipes?|weather|sports?|football|soccer|basketball|movies?|films?|music|songs?|travel|vacation|health|fitness|diet|jokes?|poems?|games?|video games?|politics|celebrity|horoscope|dating|pets?|capital of)\b`)

	questionWords = []string{"what", "how", "why", "when", "where", "who", "which", "can", "could",
		"should", "would", "is", "are", "do", "does", "will", "am", "may", "shall"}

	yesNoRequest = regexp.MustCompile(`(?i)\b(?:yes or no|yes/no|yes-or-no|just yes|only yes|a simple yes)\b`)

	styleRequest = regexp.MustCompile(`(?i)\b(?:in (?:bullet points?|bullets|a list|a table|(?:one|two|three|four|five|\d+) (?:sentences?|words?|paragraphs?|bullet points?))|as (?:bullet points?|a list|a table)|keep it (?:short|brief|simple)|be (?:brief|concise|detailed|specific)|in a (?:formal|casual|friendly|professional|humorous) (?:tone|way|style)|step[- ]by[- ]step|explain (?:it )?like i'?m (?:five|5)|briefly|in detail|in simple terms|under \d+ words)\b`)

	wordRe = regexp.MustCompile(`[a-z0-9']+`)
)

// tokens lowercases s and keeps word characters only.
func tokens(s string) []string {
	return wordRe.FindAllString(strings.ToLower(s), -1)
}

func hasLead(joined string, leads []string) bool {
	return lo.ContainsBy(leads, func(l string) bool {
		return joined == l || strings.HasPrefix(joined, l+" ")
	})
}

// IsURL reports whether s is an absolute http(s) URL with a host.
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return false
	}
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func matchPersonalInfo(utterance string) (PersonalInfo, bool) {
	for _, p := range personalInfoPatterns {
		m := p.re.FindStringSubmatch(utterance)
		if len(m) < 2 {
			continue
		}
		value := strings.TrimSpace(strings.Trim(m[1], " \t'\""))
		if value == "" {
			continue
		}
		return PersonalInfo{InfoType: p.infoType, Value: value}, true
	}
	return PersonalInfo{}, false
}

var sectionPatterns = lo.Map(resumeSections, func(s string, _ int) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(s) + `\b`)
})

func matchSection(lower string) (string, bool) {
	for i, re := range sectionPatterns {
		if re.MatchString(lower) {
			return resumeSections[i], true
		}
	}
	return "", false
}

func countIndicators(lower string) int {
	return lo.CountBy(jobPostingIndicators, func(ind string) bool {
		return strings.Contains(lower, ind)
	})
}

// refineQuestion narrows a career question to the yes/no or styled variants.
func refineQuestion(utterance string) Intent {
	if yesNoRequest.MatchString(utterance) {
		return YesNoQuestion{Question: utterance}
	}
	if style := styleRequest.FindString(utterance); style != "" {
		return InstructedQuestion{Question: utterance, Style: strings.ToLower(style)}
	}
	return CareerQuestion{Question: utterance}
}

// ClassifyRules is the deterministic classifier. Rules are tried in priority order and
// the first match wins; anything unmatched is treated as a career question.
func ClassifyRules(utterance string) Intent {
	text := strings.TrimSpace(utterance)
	lower := strings.ToLower(text)
	toks := tokens(text)
	joined := strings.Join(toks, " ")

	if info, ok := matchPersonalInfo(text); ok {
		return info
	}

	if len(toks) > 0 && len(toks) <= 3 {
		if lo.Contains(greetingWords, toks[0]) || hasLead(joined, greetingLeads) {
			return Greeting{Text: text}
		}
		if lo.Contains(farewellWords, toks[len(toks)-1]) || lo.Contains(farewellWords, toks[0]) || hasLead(joined, farewellLeads) {
			return Goodbye{Text: text}
		}
	}

	if len(toks) > 0 && len(toks) <= 4 {
		if lo.Contains(confirmations, joined) {
			return Confirmation{Text: text}
		}
		if lo.Contains(rejections, joined) {
			return Rejection{Text: text}
		}
	}

	if IsURL(text) {
		return JobURL{URL: text}
	}

	if len(strings.Fields(text)) >= 50 && countIndicators(lower) >= 2 {
		return JobDescription{Text: text}
	}

	if lo.ContainsBy(profileLookups, func(q string) bool { return strings.Contains(joined, q) }) {
		return CareerQuestion{Question: text}
	}

	if rewriteVerbs.MatchString(text) {
		if section, ok := matchSection(lower); ok {
			return RewriteSection{Section: section}
		}
	}

	if careerKeywords.MatchString(text) {
		return refineQuestion(text)
	}

	if offTopicKeywords.MatchString(text) {
		return OffTopic{Query: text}
	}

	if strings.HasSuffix(text, "?") || (len(toks) > 0 && lo.Contains(questionWords, toks[0])) {
		return refineQuestion(text)
	}

	return CareerQuestion{Question: text}
}
