package intent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/suPer8Hu/careerbot/internal/ai"
)

func stringProp(desc string) jsonschema.Definition {
	return jsonschema.Definition{Type: jsonschema.String, Description: desc}
}

func tool(kind Kind, desc string, props map[string]jsonschema.Definition, required ...string) ai.Tool {
	return ai.Tool{
		Name:        string(kind),
		Description: desc,
		Parameters: jsonschema.Definition{
			Type:                 jsonschema.Object,
			Properties:           props,
			Required:             required,
			AdditionalProperties: false,
		},
	}
}

// Tools returns the function definitions offered to the model, one per intent.
func Tools() []ai.Tool {
	return []ai.Tool{
		tool(KindGreeting, "The user greets the assistant with a short phrase and shares nothing else.",
			map[string]jsonschema.Definition{"greeting": stringProp("The greeting text")}, "greeting"),
		tool(KindGoodbye, "The user says goodbye or ends the conversation.",
			map[string]jsonschema.Definition{"farewell": stringProp("The farewell text")}, "farewell"),
		tool(KindConfirmation, "A short affirmative reply such as yes, sure or sounds good.",
			map[string]jsonschema.Definition{"confirmation": stringProp("The confirmation text")}, "confirmation"),
		tool(KindRejection, "A short negative reply such as no, nope or not now.",
			map[string]jsonschema.Definition{"rejection": stringProp("The rejection text")}, "rejection"),
		tool(KindJobURL, "The user provides a URL to a job posting.",
			map[string]jsonschema.Definition{"url": stringProp("The absolute http(s) URL of the job posting")}, "url"),
		tool(KindJobDescription, "The user pastes the text of a job description or posting.",
			map[string]jsonschema.Definition{"job_description": stringProp("The job description text")}, "job_description"),
		tool(KindCareerQuestion, "Any question or request about resumes, job applications, interviews or careers.",
			map[string]jsonschema.Definition{"question": stringProp("The career-related question")}, "question"),
		tool(KindYesNoQuestion, "A career question where the user explicitly asks for a yes or no answer.",
			map[string]jsonschema.Definition{"question": stringProp("The question to answer with yes or no")}, "question"),
		tool(KindInstructedQuestion, "A career question where the user asks for a specific response style or format.",
			map[string]jsonschema.Definition{
				"question": stringProp("The question itself"),
				"style":    stringProp("The requested style, e.g. 'in bullet points' or 'in two sentences'"),
			}, "question", "style"),
		tool(KindRewriteSection, "The user asks to redo, rewrite or revise a named resume section.",
			map[string]jsonschema.Definition{"section": stringProp("The resume section, e.g. summary, skills, experience")}, "section"),
		tool(KindPersonalInfo, "The user shares personal or professional details about themselves.",
			map[string]jsonschema.Definition{
				"info_type": {
					Type:        jsonschema.String,
					Enum:        InfoTypes,
					Description: "The kind of information being shared",
				},
				"info_value": stringProp("The information itself, e.g. 'Dana' or '5 years of experience in marketing'"),
			}, "info_type", "info_value"),
		tool(KindOffTopic, "The message has nothing to do with careers, resumes or jobs (cooking, sports, weather...).",
			map[string]jsonschema.Definition{"off_topic_query": stringProp("The off-topic message")}, "off_topic_query"),
	}
}

const classifierPrompt = `You are the intent classifier of a career assistant. Call exactly one function for the user's message.

Rules:
- If the user shares personal details (name, current role, experience, skills, education, career interest), call store_personal_info even when the message also contains a greeting.
- Use handle_greeting / handle_goodbye / handle_confirmation / handle_rejection only for short messages with nothing else in them.
- A message that is only an http(s) URL is process_job_url.
- Long pasted text listing responsibilities, requirements or qualifications is process_job_description.
- Prefer answer_career_question when unsure.

Examples:
"hi there" -> handle_greeting
"thanks, bye" -> handle_goodbye
"yes please" -> handle_confirmation
"no thanks" -> handle_rejection
"https://jobs.example.com/123" -> process_job_url
"We are looking for a backend engineer. Responsibilities: ... Requirements: ..." -> process_job_description
"How do I explain a gap in my resume?" -> answer_career_question
"Should I put my GPA on my resume? Yes or no." -> answer_yes_no_question
"How should I prepare for a panel interview? Answer in bullet points." -> answer_with_user_instructions (style: "in bullet points")
"Can you rewrite my summary section?" -> rewrite_resume_section (section: "summary")
"hello my name is Dana" -> store_personal_info (info_type: name, info_value: Dana)
"What's a good pasta recipe?" -> handle_off_topic`

// SystemPrompt is the classifier instruction block, with stored profile facts appended.
func SystemPrompt(profile map[string]any) string {
	if len(profile) == 0 {
		return classifierPrompt
	}
	keys := make([]string, 0, len(profile))
	for k := range profile {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	facts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := profile[k]
		if list, ok := v.([]string); ok {
			v = strings.Join(list, ", ")
		}
		if s := fmt.Sprint(v); s != "" {
			facts = append(facts, fmt.Sprintf("%s: %s", k, s))
		}
	}
	if len(facts) == 0 {
		return classifierPrompt
	}
	return classifierPrompt + "\n\nUser's stored information: " + strings.Join(facts, ", ")
}
