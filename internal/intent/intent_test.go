package intent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/careerbot/internal/ai"
)

type scriptedCaller struct {
	out  ai.Completion
	err  error
	seen []ai.Message
	opts ai.Options
}

func (s *scriptedCaller) CallTools(_ context.Context, msgs []ai.Message, tools []ai.Tool, opts ai.Options) (ai.Completion, error) {
	s.seen = msgs
	s.opts = opts
	return s.out, s.err
}

func jobPosting() string {
	base := "We are looking for a senior data analyst to join our growing analytics team in Chicago. " +
		"Responsibilities include building dashboards, partnering with finance and marketing stakeholders, " +
		"owning weekly reporting, and presenting insights to leadership in a clear and concise way. " +
		"Requirements: strong SQL, experience with Python or R, familiarity with Tableau or Looker, " +
		"and excellent communication. Qualifications: a degree in statistics, economics, computer science " +
		"or a related field, plus a track record of turning messy data into decisions. "
	words := strings.Fields(base)
	for len(words) < 120 {
		words = append(words, "collaboration")
	}
	return strings.Join(words[:120], " ")
}

func TestClassifyRules(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Intent
	}{
		{"greeting with disclosure", "hello my name is Dana", PersonalInfo{InfoType: "name", Value: "Dana"}},
		{"name with surname", "Hi! My name is Dana Scully.", PersonalInfo{InfoType: "name", Value: "Dana Scully"}},
		{"current role", "I work as a registered nurse, any tips?", PersonalInfo{InfoType: "current_role", Value: "registered nurse"}},
		{"experience", "I have 5 years of experience in marketing", PersonalInfo{InfoType: "experience", Value: "5 years of experience in marketing"}},
		{"career interest", "I want to work in renewable energy.", PersonalInfo{InfoType: "career_interest", Value: "renewable energy"}},
		{"skills", "My skills are Go, SQL and Kubernetes", PersonalInfo{InfoType: "skills", Value: "Go, SQL and Kubernetes"}},
		{"education", "I have a bachelor's degree in biology", PersonalInfo{InfoType: "education", Value: "bachelor's degree in biology"}},
		{"short greeting", "hi there", Greeting{Text: "hi there"}},
		{"good morning", "Good morning!", Greeting{Text: "Good morning!"}},
		{"farewell", "ok bye", Goodbye{Text: "ok bye"}},
		{"see you", "see you later", Goodbye{Text: "see you later"}},
		{"confirmation", "Yes please", Confirmation{Text: "Yes please"}},
		{"rejection", "no thanks", Rejection{Text: "no thanks"}},
		{"url", "https://example.com/job/123", JobURL{URL: "https://example.com/job/123"}},
		{"lookup question", "what's my name?", CareerQuestion{Question: "what's my name?"}},
		{"rewrite section", "Can you rewrite my work experience section?", RewriteSection{Section: "work experience"}},
		{"rewrite summary", "please redo the summary", RewriteSection{Section: "summary"}},
		{"career keyword", "How long should my resume be", CareerQuestion{Question: "How long should my resume be"}},
		{"yes no", "Should I include my GPA on my resume? yes or no", YesNoQuestion{Question: "Should I include my GPA on my resume? yes or no"}},
		{"instructions", "How do I prepare for an interview, in bullet points", InstructedQuestion{Question: "How do I prepare for an interview, in bullet points", Style: "in bullet points"}},
		{"off topic", "how to do pushups", OffTopic{Query: "how to do pushups"}},
		{"off topic recipe", "Give me a lasagna recipe", OffTopic{Query: "Give me a lasagna recipe"}},
		{"question word", "what is a good way to stand out", CareerQuestion{Question: "what is a good way to stand out"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ClassifyRules(tt.in))
		})
	}
}

func TestClassifyRules_LongGreetingIsNotSmallTalk(t *testing.T) {
	got := ClassifyRules("hi I need help tailoring my resume for a product role")
	require.Equal(t, KindCareerQuestion, got.Kind())
}

func TestClassifyRules_JobPosting(t *testing.T) {
	text := jobPosting()
	require.Len(t, strings.Fields(text), 120)
	got := ClassifyRules(text)
	require.Equal(t, JobDescription{Text: text}, got)
}

func TestClassifyRules_ShortTextWithIndicatorsIsNotPosting(t *testing.T) {
	got := ClassifyRules("what requirements and qualifications matter most?")
	require.NotEqual(t, KindJobDescription, got.Kind())
}

func TestClassifyRules_NonHTTPURLIsNotJobURL(t *testing.T) {
	require.NotEqual(t, KindJobURL, ClassifyRules("ftp://example.com/job").Kind())
	require.NotEqual(t, KindJobURL, ClassifyRules("example.com/job").Kind())
}

// Unrecognised input is answered as a career question on purpose; this default is lossy.
func TestClassifyRules_DefaultsToCareerQuestion(t *testing.T) {
	for _, in := range []string{"blorp", "asdf qwerty zxcv", "the thing from before"} {
		require.Equal(t, CareerQuestion{Question: in}, ClassifyRules(in), in)
	}
}

func TestFromCall(t *testing.T) {
	got, err := FromCall("store_personal_info", `{"info_type":"Current Role","info_value":"nurse"}`, "x")
	require.NoError(t, err)
	require.Equal(t, PersonalInfo{InfoType: "current_role", Value: "nurse"}, got)

	got, err = FromCall("answer_career_question", `{}`, "how do I negotiate?")
	require.NoError(t, err)
	require.Equal(t, CareerQuestion{Question: "how do I negotiate?"}, got)

	_, err = FromCall("process_job_url", `{"url":"not a url"}`, "x")
	require.ErrorIs(t, err, ErrMissingArgument)

	_, err = FromCall("store_personal_info", `{"info_type":"name"}`, "x")
	require.ErrorIs(t, err, ErrMissingArgument)

	_, err = FromCall("answer_with_user_instructions", `{"question":"q"}`, "x")
	require.ErrorIs(t, err, ErrMissingArgument)

	_, err = FromCall("launch_rocket", `{}`, "x")
	require.ErrorIs(t, err, ErrUnknownTool)

	_, err = FromCall("handle_greeting", `{"greeting":`, "x")
	require.ErrorIs(t, err, ErrBadArguments)
}

func TestTools_CoverEveryKind(t *testing.T) {
	tools := Tools()
	require.Len(t, tools, 12)
	for _, tl := range tools {
		def, ok := tl.Parameters.(jsonschema.Definition)
		require.True(t, ok, tl.Name)
		b, err := json.Marshal(def)
		require.NoError(t, err)
		require.Contains(t, string(b), `"type":"object"`)
		require.NotEmpty(t, def.Required, tl.Name)

		_, err = FromCall(tl.Name, `{"url":"https://a.example/x","info_type":"name","info_value":"v","style":"s","section":"summary"}`, "u")
		require.NoError(t, err, tl.Name)
	}
}

func TestClassifier_UsesModelCall(t *testing.T) {
	caller := &scriptedCaller{out: ai.StructuredCall{Name: "process_job_url", Arguments: `{"url":"https://example.com/job/123"}`}}
	c := NewClassifier(caller, 0.1)

	res := c.Classify(context.Background(), "https://example.com/job/123", map[string]any{"name": "Dana"})
	require.Equal(t, SourceModel, res.Source)
	require.Equal(t, JobURL{URL: "https://example.com/job/123"}, res.Intent)
	require.InDelta(t, 0.1, caller.opts.Temperature, 1e-6)
	require.Len(t, caller.seen, 2)
	require.Contains(t, caller.seen[0].Content, "name: Dana")
}

func TestClassifier_FallsBackToRules(t *testing.T) {
	cases := map[string]*scriptedCaller{
		"transport error": {err: errors.New("dial tcp: refused")},
		"free text":       {out: ai.FreeText{Content: "I think it's a greeting"}},
		"bad arguments":   {out: ai.StructuredCall{Name: "store_personal_info", Arguments: `{"info_type":`}},
		"unknown tool":    {out: ai.StructuredCall{Name: "do_magic", Arguments: `{}`}},
	}
	for name, caller := range cases {
		t.Run(name, func(t *testing.T) {
			res := NewClassifier(caller, 0.1).Classify(context.Background(), "hello my name is Dana", nil)
			require.Equal(t, SourceRules, res.Source)
			require.Equal(t, PersonalInfo{InfoType: "name", Value: "Dana"}, res.Intent)
		})
	}
}

func TestClassifier_NilCallerUsesRules(t *testing.T) {
	res := NewClassifier(nil, 0.1).Classify(context.Background(), "https://example.com/job/123", nil)
	require.Equal(t, SourceRules, res.Source)
	require.Equal(t, JobURL{URL: "https://example.com/job/123"}, res.Intent)
}

func TestClassifier_DisclosureBeatsModelGreeting(t *testing.T) {
	caller := &scriptedCaller{out: ai.StructuredCall{Name: "handle_greeting", Arguments: `{"greeting":"hello"}`}}
	res := NewClassifier(caller, 0.1).Classify(context.Background(), "hello my name is Dana", nil)
	require.Equal(t, PersonalInfo{InfoType: "name", Value: "Dana"}, res.Intent)
}
