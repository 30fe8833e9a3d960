package chat

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/suPer8Hu/careerbot/internal/ai"
	"github.com/suPer8Hu/careerbot/internal/errx"
	"github.com/suPer8Hu/careerbot/internal/extract"
	"github.com/suPer8Hu/careerbot/internal/intent"
	"github.com/suPer8Hu/careerbot/internal/logx"
	"github.com/suPer8Hu/careerbot/internal/memory"
	"github.com/suPer8Hu/careerbot/internal/metrics"
	"github.com/suPer8Hu/careerbot/internal/ratelimit"
)

const (
	defaultFactualTemperature        = 0.3
	defaultConversationalTemperature = 0.7
	defaultMaxTokens                 = 1500
)

type WebFetcher interface {
	Fetch(ctx context.Context, url string) (extract.Page, error)
}

type DocumentExtractor interface {
	Extract(r io.Reader) string
}

// Deps wires the orchestrator. Sessions, Limiter and Classifier are required;
// Jobs and Publisher are only needed for async messages.
type Deps struct {
	Sessions   *memory.Manager
	Limiter    ratelimit.Limiter
	Classifier *intent.Classifier
	Provider   ai.Provider
	Web        WebFetcher
	Documents  DocumentExtractor
	Jobs       JobStore
	Publisher  Publisher

	FactualTemperature        float32
	ConversationalTemperature float32
	MaxTokens                 int
}

type Service struct {
	sessions   *memory.Manager
	limiter    ratelimit.Limiter
	classifier *intent.Classifier
	provider   ai.Provider
	web        WebFetcher
	documents  DocumentExtractor
	jobs       JobStore
	publisher  Publisher

	factual        float32
	conversational float32
	maxTokens      int

	pick func([]string) string
	now  func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		sessions:       d.Sessions,
		limiter:        d.Limiter,
		classifier:     d.Classifier,
		provider:       d.Provider,
		web:            d.Web,
		documents:      d.Documents,
		jobs:           d.Jobs,
		publisher:      d.Publisher,
		factual:        d.FactualTemperature,
		conversational: d.ConversationalTemperature,
		maxTokens:      d.MaxTokens,
		pick:           lo.Sample[string],
		now:            time.Now,
	}
	if s.sessions == nil {
		s.sessions = memory.NewManager(0)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewMemoryLimiter(ratelimit.DefaultLimit, ratelimit.DefaultWindow)
	}
	if s.classifier == nil {
		s.classifier = intent.NewClassifier(nil, 0)
	}
	if s.web == nil {
		s.web = extract.NewWebFetcher()
	}
	if s.documents == nil {
		s.documents = extract.NewPDFExtractor()
	}
	if s.factual <= 0 {
		s.factual = defaultFactualTemperature
	}
	if s.conversational <= 0 {
		s.conversational = defaultConversationalTemperature
	}
	if s.maxTokens <= 0 {
		s.maxTokens = defaultMaxTokens
	}
	return s
}

// Request is one user turn. An empty SessionID starts a new session.
type Request struct {
	SessionID string
	UserID    uint64
	Message   string
}

type Usage struct {
	Used           int        `json:"used"`
	Remaining      int        `json:"remaining"`
	Limit          int        `json:"limit"`
	ResetTime      *time.Time `json:"reset_time"`
	TimeUntilReset string     `json:"time_until_reset,omitempty"`
}

type Reply struct {
	SessionID string      `json:"session_id"`
	Response  string      `json:"response"`
	Intent    intent.Kind `json:"intent,omitempty"`
	RateLimit Usage       `json:"rate_limit"`
}

func (s *Service) usage(st ratelimit.Status) Usage {
	u := Usage{Used: st.Count, Remaining: st.Remaining, Limit: st.Limit}
	if !st.WindowEnd.IsZero() {
		end := st.WindowEnd
		u.ResetTime = &end
		u.TimeUntilReset = formatRemaining(end.Sub(s.now()))
	}
	return u
}

// admit rejects empty input and exhausted sessions before any work is done.
// Limiter failures fail open.
func (s *Service) admit(ctx context.Context, sessionID, message string) error {
	if strings.TrimSpace(message) == "" {
		return errx.BadRequest(ErrEmptyMessage)
	}
	return s.checkQuota(ctx, sessionID)
}

func (s *Service) checkQuota(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	st, err := s.limiter.Check(ctx, sessionID)
	if err != nil {
		logx.Warn().Err(err).Str("session_id", sessionID).Msg("rate limit check failed, allowing message")
		return nil
	}
	if !st.Allowed {
		metrics.QuotaRejections.Inc()
		return &QuotaError{Usage: s.usage(st)}
	}
	return nil
}

// SendMessage classifies the message, produces the full reply, records the turn
// and consumes one unit of quota.
func (s *Service) SendMessage(ctx context.Context, req Request) (*Reply, error) {
	if err := s.admit(ctx, req.SessionID, req.Message); err != nil {
		return nil, err
	}
	sess := s.sessions.LoadOrCreate(ctx, req.SessionID, req.UserID)
	return s.process(ctx, sess, req.Message, nil)
}

type StreamResult struct {
	Reply *Reply
	Err   error
}

// Stream delivers reply fragments in generation order. Done yields exactly one
// result after Chunks is closed.
type Stream struct {
	SessionID string
	Chunks    <-chan string
	Done      <-chan StreamResult
}

// SendMessageStream validates and checks quota synchronously, then produces the
// reply in the background. The concatenated fragments equal Reply.Response.
// Cancelling ctx discards the turn.
func (s *Service) SendMessageStream(ctx context.Context, req Request) (*Stream, error) {
	if err := s.admit(ctx, req.SessionID, req.Message); err != nil {
		return nil, err
	}
	sess := s.sessions.LoadOrCreate(ctx, req.SessionID, req.UserID)

	chunks := make(chan string, 16)
	done := make(chan StreamResult, 1)
	emit := func(c string) bool {
		select {
		case chunks <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(done)
		rep, err := s.process(ctx, sess, req.Message, emit)
		close(chunks)
		done <- StreamResult{Reply: rep, Err: err}
	}()

	return &Stream{SessionID: sess.ID(), Chunks: chunks, Done: done}, nil
}

func (s *Service) process(ctx context.Context, sess *memory.Session, message string, emit func(string) bool) (*Reply, error) {
	res := s.classifier.Classify(ctx, message, sess.Profile())
	logx.Debug().
		Str("session_id", sess.ID()).
		Str("intent", string(res.Intent.Kind())).
		Str("source", res.Source).
		Msg("message classified")

	text := s.respond(ctx, sess, res.Intent, message, emit)
	if err := ctx.Err(); err != nil {
		logx.Info().Err(err).Str("session_id", sess.ID()).Msg("request cancelled, turn discarded")
		return nil, err
	}
	return s.commit(ctx, sess, message, text, res.Intent.Kind()), nil
}

// commit records the turn and consumes quota. It runs detached from ctx so a
// disconnect after the reply is complete cannot half-persist the turn.
func (s *Service) commit(ctx context.Context, sess *memory.Session, userText, reply string, kind intent.Kind) *Reply {
	ctx = context.WithoutCancel(ctx)
	sess.AppendTurn(ctx, userText, reply)
	if _, err := s.limiter.Increment(ctx, sess.ID()); err != nil {
		logx.Warn().Err(err).Str("session_id", sess.ID()).Msg("rate limit increment failed")
	}

	rep := &Reply{SessionID: sess.ID(), Response: reply, Intent: kind}
	if st, err := s.limiter.Check(ctx, sess.ID()); err == nil {
		rep.RateLimit = s.usage(st)
	}
	return rep
}

func (s *Service) say(emit func(string) bool, text string) string {
	if emit != nil {
		emit(text)
	}
	return text
}

// respond dispatches on the intent. Canned replies never reach the model.
func (s *Service) respond(ctx context.Context, sess *memory.Session, in intent.Intent, message string, emit func(string) bool) string {
	switch v := in.(type) {
	case intent.Greeting:
		return s.say(emit, personalize(s.pick(greetingPool), sess.Name()))
	case intent.Goodbye:
		return s.say(emit, personalize(s.pick(farewellPool), sess.Name()))
	case intent.Confirmation:
		return s.say(emit, personalize(s.pick(confirmationPool), sess.Name()))
	case intent.Rejection:
		return s.say(emit, personalize(s.pick(rejectionPool), sess.Name()))
	case intent.PersonalInfo:
		sess.StoreProfileField(ctx, v.InfoType, v.Value)
		return s.say(emit, confirmStored(v.InfoType, v.Value))
	case intent.OffTopic:
		return s.say(emit, offTopicReply)
	case intent.JobURL:
		return s.complete(ctx, sess, s.pageContent(ctx, sess.ID(), v.URL), s.factual, emit)
	case intent.JobDescription:
		return s.complete(ctx, sess, v.Text, s.factual, emit)
	case intent.CareerQuestion:
		return s.complete(ctx, sess, v.Question, s.conversational, emit)
	case intent.YesNoQuestion:
		return s.complete(ctx, sess, yesNoPrompt(v.Question), s.conversational, emit)
	case intent.InstructedQuestion:
		return s.complete(ctx, sess, instructedPrompt(v.Question, v.Style), s.conversational, emit)
	case intent.RewriteSection:
		return s.complete(ctx, sess, rewritePrompt(v.Section), s.conversational, emit)
	default:
		// answered as a career question rather than refused
		return s.complete(ctx, sess, message, s.conversational, emit)
	}
}

// pageContent turns a job posting URL into user content. A failed fetch still
// produces content so the model can explain what went wrong.
func (s *Service) pageContent(ctx context.Context, sessionID, url string) string {
	page, err := s.web.Fetch(ctx, url)
	if err != nil {
		logx.Warn().Err(err).Str("session_id", sessionID).Str("url", url).Msg("job page fetch failed")
		page = extract.Page{
			URL:   url,
			Title: url,
			Text:  fmt.Sprintf("The job posting at %s could not be retrieved (%v). Ask the user to paste the job description text instead.", url, err),
		}
	}
	return page.Prompt()
}

// complete calls the model with [system, profile?, history?, user]. Provider
// failures become an apology that is emitted and persisted like any reply.
func (s *Service) complete(ctx context.Context, sess *memory.Session, content string, temperature float32, emit func(string) bool) string {
	msgs := buildMessages(sess.Profile(), sess.TurnsText(), content)
	opts := ai.Options{Temperature: temperature, MaxTokens: s.maxTokens}

	if s.provider == nil {
		return s.say(emit, s.apologize(sess.ID(), errNoProvider))
	}

	if emit == nil {
		text, err := s.provider.Chat(ctx, msgs, opts)
		if err == nil && strings.TrimSpace(text) == "" {
			err = errEmptyCompletion
		}
		if err != nil {
			return s.apologize(sess.ID(), err)
		}
		return text
	}

	chunks, errs := ai.ChatStream(ctx, s.provider, msgs, opts)
	var b strings.Builder
	open := true
	for c := range chunks {
		b.WriteString(c)
		if open {
			open = emit(c)
		}
	}
	err := <-errs
	if err == nil && strings.TrimSpace(b.String()) == "" {
		err = errEmptyCompletion
	}
	if err == nil {
		return b.String()
	}

	apology := s.apologize(sess.ID(), err)
	if b.Len() > 0 {
		apology = "\n\n" + apology
	}
	if open {
		emit(apology)
	}
	return b.String() + apology
}

func (s *Service) apologize(sessionID string, err error) string {
	metrics.ProviderErrors.Inc()
	logx.Error().Err(err).Str("session_id", sessionID).Msg("completion failed")
	return fmt.Sprintf(apologyFormat, err)
}

func (s *Service) RateLimitStatus(ctx context.Context, sessionID string) (Usage, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Usage{}, errx.BadRequest(ErrMissingSession)
	}
	st, err := s.limiter.Check(ctx, sessionID)
	if err != nil {
		return Usage{}, err
	}
	return s.usage(st), nil
}

func (s *Service) ResetRateLimit(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return errx.BadRequest(ErrMissingSession)
	}
	return s.limiter.Reset(ctx, sessionID)
}

func (s *Service) ListRateLimits(ctx context.Context) ([]ratelimit.Record, error) {
	return s.limiter.ListActive(ctx)
}
