package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/suPer8Hu/careerbot/internal/ai"
	"github.com/suPer8Hu/careerbot/internal/memory"
)

// PromptVersion is bumped whenever systemPrompt changes wording.
const PromptVersion = "2024-06-career-v3"

const systemPrompt = `You are a friendly and professional career advisor chatbot specializing ONLY in resumes, job applications, interviews, and career advice.

IMPORTANT BOUNDARIES: You should ONLY help with career-related topics including:
- Resume writing and tailoring
- Job applications and cover letters
- Interview preparation
- Career advice and development
- Job search strategies
- Professional networking
- Salary negotiation

If a user asks about topics unrelated to careers, politely redirect them back to career-related assistance.

When a user provides a job description, help them by generating:

1. An Objective: a brief 1-2 sentence summary of why they are a great fit for the role.

2. A list of exactly 6-7 Highlights of Qualifications: specific, relevant points about their skills, achievements, or experience that match the job.

3. A categorized list of Relevant Skills: organize skills into logical groups based on the job requirements. Choose 3-5 relevant categories based on what the job posting emphasizes. List the skills in each group separated by commas.

IMPORTANT: Do not use any Markdown formatting in your responses. Do not use asterisks (*) around section titles or for emphasis. Do not use backticks for code. Do not use any special formatting characters. Present all text as plain text only.

PERSONALIZATION: If the user has previously shared personal information (name, current role, experience, skills, etc.), incorporate this information naturally into your responses to make them more personalized and relevant.`

const (
	profileHeader = "IMPORTANT - User's Personal Information:"
	profileFooter = "Always use this information to personalize your responses. Address the user by name when appropriate and reference their background naturally."
	historyHeader = "Previous conversation:\n"
)

// profileOrder puts the well-known fields first; the rest follow alphabetically.
var profileOrder = []string{
	memory.FieldName,
	memory.FieldCurrentRole,
	memory.FieldExperience,
	memory.FieldCareerInterest,
	memory.FieldSkills,
	memory.FieldEducation,
}

func profileLine(key, value string) string {
	switch key {
	case memory.FieldName:
		return "The user's name is " + value
	case memory.FieldCareerInterest:
		return "The user wants to work in " + value
	case memory.FieldCurrentRole:
		return "The user currently works as " + value
	case memory.FieldExperience:
		return fmt.Sprintf("The user has %s of experience", value)
	default:
		return fmt.Sprintf("The user's %s is %s", key, value)
	}
}

// profileContext renders the profile as a system message, or "" when nothing is stored.
func profileContext(p memory.Profile) string {
	known := make(map[string]bool, len(profileOrder))
	keys := make([]string, 0, len(p))
	for _, k := range profileOrder {
		known[k] = true
		if _, ok := p[k]; ok {
			keys = append(keys, k)
		}
	}
	var rest []string
	for k := range p {
		if !known[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	var lines []string
	for _, k := range keys {
		if v := p.String(k); v != "" {
			lines = append(lines, profileLine(k, v))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return profileHeader + "\n" + strings.Join(lines, "\n") + "\n\n" + profileFooter
}

// buildMessages returns [system, profile?, history?, user] in that order.
func buildMessages(p memory.Profile, history, user string) []ai.Message {
	msgs := []ai.Message{{Role: ai.RoleSystem, Content: systemPrompt}}
	if pc := profileContext(p); pc != "" {
		msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: pc})
	}
	if history != "" {
		msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: historyHeader + history})
	}
	return append(msgs, ai.Message{Role: ai.RoleUser, Content: user})
}

func yesNoPrompt(q string) string {
	return q + "\n\nStart your answer with a clear yes or no, then explain briefly."
}

func instructedPrompt(q, style string) string {
	return q + "\n\nUse this style for your answer: " + style
}

func rewritePrompt(section string) string {
	return fmt.Sprintf("Please rewrite the %s section of my resume so it is clearer and more compelling. "+
		"Use the information you have about me and our conversation so far.", section)
}

const resumeAnalysisPrompt = "Please analyze my resume and suggest concrete improvements. Here is the text of my resume:\n\n"

// canned replies; %s is " <name>" or "" so punctuation stays intact.
var (
	greetingPool = []string{
		"Hello%s! How can I help with your resume or job search today?",
		"Hi%s! Ready to work on your career development?",
		"Greetings%s! What career assistance do you need today?",
		"Welcome%s! How can I help with your professional development?",
	}
	farewellPool = []string{
		"Goodbye%s! Feel free to return when you need more help with your career.",
		"Take care%s! I'm here when you need resume or job search assistance.",
		"Until next time%s! Best of luck with your career journey.",
		"Farewell%s! Come back anytime for more career advice.",
	}
	confirmationPool = []string{
		"Great%s! What would you like to work on next?",
		"Sounds good%s! Let me know how I can help with your resume or job search.",
		"Perfect%s! Tell me what you'd like to do next.",
	}
	rejectionPool = []string{
		"No problem%s! Is there something else I can help you with?",
		"Understood%s. Let me know if you need help with anything else career-related.",
		"That's fine%s! I'm here whenever you want to continue.",
	}
)

const (
	offTopicReply    = "I'm specialized in helping with resumes, job applications, and career advice. How can I assist you with your career today?"
	apologyFormat    = "I'm sorry, there was an error generating a response: %v"
	quotaFormat      = "You've reached the limit of %d messages. Please try again in %s."
	uploadTurnFormat = "[Uploaded %s PDF: %s]"
	previewRunes     = 500
)

func personalize(tmpl, name string) string {
	if name != "" {
		name = " " + name
	}
	return fmt.Sprintf(tmpl, name)
}

func confirmStored(infoType, value string) string {
	switch infoType {
	case memory.FieldExperience:
		return fmt.Sprintf("Got it! I've noted that you have %s. This will be helpful for tailoring your resume.", value)
	case memory.FieldCurrentRole:
		return fmt.Sprintf("Perfect! I've noted that you work as %s. Your background will be valuable for your career goals.", value)
	case memory.FieldName:
		return fmt.Sprintf("Nice to meet you, %s! How can I help with your career today?", value)
	case memory.FieldCareerInterest:
		return fmt.Sprintf("Excellent! I've noted your interest in %s. I'm here to help you with your job search in this field.", value)
	default:
		return fmt.Sprintf("Thanks for sharing that information! I've noted your %s: %s.", infoType, value)
	}
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= previewRunes {
		return text
	}
	return string(r[:previewRunes]) + "..."
}
