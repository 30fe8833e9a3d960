// Package intent maps one user utterance to exactly one action.
package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindGreeting           Kind = "handle_greeting"
	KindGoodbye            Kind = "handle_goodbye"
	KindConfirmation       Kind = "handle_confirmation"
	KindRejection          Kind = "handle_rejection"
	KindJobURL             Kind = "process_job_url"
	KindJobDescription     Kind = "process_job_description"
	KindCareerQuestion     Kind = "answer_career_question"
	KindYesNoQuestion      Kind = "answer_yes_no_question"
	KindInstructedQuestion Kind = "answer_with_user_instructions"
	KindRewriteSection     Kind = "rewrite_resume_section"
	KindPersonalInfo       Kind = "store_personal_info"
	KindOffTopic           Kind = "handle_off_topic"
)

// Intent is a closed set: only the types in this file implement it.
type Intent interface {
	Kind() Kind
	sealed()
}

type Greeting struct{ Text string }
type Goodbye struct{ Text string }
type Confirmation struct{ Text string }
type Rejection struct{ Text string }
type JobURL struct{ URL string }
type JobDescription struct{ Text string }
type CareerQuestion struct{ Question string }
type YesNoQuestion struct{ Question string }

type InstructedQuestion struct {
	Question string
	Style    string
}

type RewriteSection struct{ Section string }

type PersonalInfo struct {
	InfoType string
	Value    string
}

type OffTopic struct{ Query string }

func (Greeting) Kind() Kind           { return KindGreeting }
func (Goodbye) Kind() Kind            { return KindGoodbye }
func (Confirmation) Kind() Kind       { return KindConfirmation }
func (Rejection) Kind() Kind          { return KindRejection }
func (JobURL) Kind() Kind             { return KindJobURL }
func (JobDescription) Kind() Kind     { return KindJobDescription }
func (CareerQuestion) Kind() Kind     { return KindCareerQuestion }
func (YesNoQuestion) Kind() Kind      { return KindYesNoQuestion }
func (InstructedQuestion) Kind() Kind { return KindInstructedQuestion }
func (RewriteSection) Kind() Kind     { return KindRewriteSection }
func (PersonalInfo) Kind() Kind       { return KindPersonalInfo }
func (OffTopic) Kind() Kind           { return KindOffTopic }

func (Greeting) sealed()           {}
func (Goodbye) sealed()            {}
func (Confirmation) sealed()       {}
func (Rejection) sealed()          {}
func (JobURL) sealed()             {}
func (JobDescription) sealed()     {}
func (CareerQuestion) sealed()     {}
func (YesNoQuestion) sealed()      {}
func (InstructedQuestion) sealed() {}
func (RewriteSection) sealed()     {}
func (PersonalInfo) sealed()       {}
func (OffTopic) sealed()           {}

// InfoTypes the classifier may report for store_personal_info.
var InfoTypes = []string{"name", "current_role", "experience", "skills", "education", "career_interest", "other"}

var (
	ErrUnknownTool     = errors.New("unknown intent tool")
	ErrMissingArgument = errors.New("missing intent argument")
	ErrBadArguments    = errors.New("malformed intent arguments")
)

type callArgs struct {
	Greeting       string `json:"greeting"`
	Farewell       string `json:"farewell"`
	Confirmation   string `json:"confirmation"`
	Rejection      string `json:"rejection"`
	URL            string `json:"url"`
	JobDescription string `json:"job_description"`
	Question       string `json:"question"`
	Style          string `json:"style"`
	Section        string `json:"section"`
	InfoType       string `json:"info_type"`
	InfoValue      string `json:"info_value"`
	OffTopicQuery  string `json:"off_topic_query"`
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return strings.TrimSpace(def)
}

// FromCall validates a model tool call. Free-text arguments the model omitted default to
// the utterance; structural arguments (url, info_type, info_value, style, section) are required.
func FromCall(name, arguments, utterance string) (Intent, error) {
	var a callArgs
	if s := strings.TrimSpace(arguments); s != "" {
		if err := json.Unmarshal([]byte(s), &a); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadArguments, err)
		}
	}

	switch Kind(strings.TrimSpace(name)) {
	case KindGreeting:
		return Greeting{Text: orDefault(a.Greeting, utterance)}, nil
	case KindGoodbye:
		return Goodbye{Text: orDefault(a.Farewell, utterance)}, nil
	case KindConfirmation:
		return Confirmation{Text: orDefault(a.Confirmation, utterance)}, nil
	case KindRejection:
		return Rejection{Text: orDefault(a.Rejection, utterance)}, nil
	case KindJobURL:
		u := orDefault(a.URL, "")
		if !IsURL(u) {
			return nil, fmt.Errorf("%w: url %q", ErrMissingArgument, u)
		}
		return JobURL{URL: u}, nil
	case KindJobDescription:
		return JobDescription{Text: orDefault(a.JobDescription, utterance)}, nil
	case KindCareerQuestion:
		return CareerQuestion{Question: orDefault(a.Question, utterance)}, nil
	case KindYesNoQuestion:
		return YesNoQuestion{Question: orDefault(a.Question, utterance)}, nil
	case KindInstructedQuestion:
		style := orDefault(a.Style, "")
		if style == "" {
			return nil, fmt.Errorf("%w: style", ErrMissingArgument)
		}
		return InstructedQuestion{Question: orDefault(a.Question, utterance), Style: style}, nil
	case KindRewriteSection:
		section := orDefault(a.Section, "")
		if section == "" {
			return nil, fmt.Errorf("%w: section", ErrMissingArgument)
		}
		return RewriteSection{Section: section}, nil
	case KindPersonalInfo:
		infoType := normalizeInfoType(a.InfoType)
		value := orDefault(a.InfoValue, "")
		if infoType == "" || value == "" {
			return nil, fmt.Errorf("%w: info_type/info_value", ErrMissingArgument)
		}
		return PersonalInfo{InfoType: infoType, Value: value}, nil
	case KindOffTopic:
		return OffTopic{Query: orDefault(a.OffTopicQuery, utterance)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
}

func normalizeInfoType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "_")
}
