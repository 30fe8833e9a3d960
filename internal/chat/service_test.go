package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/careerbot/internal/ai"
	"github.com/suPer8Hu/careerbot/internal/errx"
	"github.com/suPer8Hu/careerbot/internal/extract"
	"github.com/suPer8Hu/careerbot/internal/intent"
	"github.com/suPer8Hu/careerbot/internal/memory"
	"github.com/suPer8Hu/careerbot/internal/ratelimit"
)

type fakeProvider struct {
	mu     sync.Mutex
	reply  string
	chunks []string
	err    error
	calls  [][]ai.Message
	opts   []ai.Options
}

func (p *fakeProvider) record(msgs []ai.Message, opts ai.Options) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, append([]ai.Message(nil), msgs...))
	p.opts = append(p.opts, opts)
}

func (p *fakeProvider) Chat(_ context.Context, msgs []ai.Message, opts ai.Options) (string, error) {
	p.record(msgs, opts)
	if p.err != nil {
		return "", p.err
	}
	if p.reply != "" {
		return p.reply, nil
	}
	return strings.Join(p.chunks, ""), nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *fakeProvider) lastCall() ([]ai.Message, ai.Options) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[len(p.calls)-1], p.opts[len(p.opts)-1]
}

// streamingProvider emits chunks, then fails with err when set.
type streamingProvider struct {
	fakeProvider
}

func (p *streamingProvider) StreamChat(ctx context.Context, msgs []ai.Message, opts ai.Options) (<-chan string, <-chan error) {
	p.record(msgs, opts)
	chunks := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		for _, c := range p.chunks {
			select {
			case chunks <- c:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if p.err != nil {
			errs <- p.err
		}
	}()
	return chunks, errs
}

// hangingProvider emits one chunk and then waits for cancellation.
type hangingProvider struct{}

func (hangingProvider) Chat(ctx context.Context, _ []ai.Message, _ ai.Options) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (hangingProvider) StreamChat(ctx context.Context, _ []ai.Message, _ ai.Options) (<-chan string, <-chan error) {
	chunks := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		chunks <- "first"
		<-ctx.Done()
		errs <- ctx.Err()
	}()
	return chunks, errs
}

type fakeWeb struct {
	page extract.Page
	err  error
}

func (w fakeWeb) Fetch(_ context.Context, url string) (extract.Page, error) {
	if w.err != nil {
		return extract.Page{}, w.err
	}
	p := w.page
	p.URL = url
	return p, nil
}

type fakeDocs struct{ text string }

func (d fakeDocs) Extract(io.Reader) string { return d.text }

type brokenLimiter struct{}

func (brokenLimiter) Check(context.Context, string) (ratelimit.Status, error) {
	return ratelimit.Status{}, errors.New("redis down")
}
func (brokenLimiter) Increment(context.Context, string) (int, error) {
	return 0, errors.New("redis down")
}
func (brokenLimiter) Reset(context.Context, string) error { return errors.New("redis down") }
func (brokenLimiter) ListActive(context.Context) ([]ratelimit.Record, error) {
	return nil, errors.New("redis down")
}

type testEnv struct {
	svc      *Service
	sessions *memory.Manager
	limiter  *ratelimit.MemoryLimiter
	now      time.Time
}

func newTestEnv(t *testing.T, provider ai.Provider, limit int, mutate ...func(*Deps)) *testEnv {
	t.Helper()
	env := &testEnv{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return env.now }

	env.sessions = memory.NewManager(15, memory.WithClock(clock))
	env.limiter = ratelimit.NewMemoryLimiter(limit, 3*time.Hour).WithClock(clock)

	d := Deps{
		Sessions: env.sessions,
		Limiter:  env.limiter,
		Provider: provider,
		Web:      fakeWeb{page: extract.Page{Title: "Data Analyst", Text: "Responsibilities: SQL"}},
	}
	for _, m := range mutate {
		m(&d)
	}
	env.svc = NewService(d)
	env.svc.now = clock
	env.svc.pick = func(pool []string) string { return pool[0] }
	return env
}

func (e *testEnv) session(t *testing.T, id string) *memory.Session {
	t.Helper()
	sess, ok := e.sessions.Get(id)
	require.True(t, ok, "session %s not cached", id)
	return sess
}

func send(t *testing.T, svc *Service, sessionID, msg string) *Reply {
	t.Helper()
	rep, err := svc.SendMessage(context.Background(), Request{SessionID: sessionID, Message: msg})
	require.NoError(t, err)
	return rep
}

func TestSendMessage_NameDisclosure(t *testing.T) {
	prov := &fakeProvider{reply: "unused"}
	env := newTestEnv(t, prov, 50)

	rep := send(t, env.svc, "", "hello my name is Dana")

	require.NotEmpty(t, rep.SessionID)
	require.Equal(t, intent.KindPersonalInfo, rep.Intent)
	require.Contains(t, rep.Response, "Dana")
	require.Equal(t, "Dana", env.session(t, rep.SessionID).Profile()["name"])
	require.Zero(t, prov.callCount())
	require.Equal(t, 1, rep.RateLimit.Used)
	require.Equal(t, 49, rep.RateLimit.Remaining)
	require.NotNil(t, rep.RateLimit.ResetTime)
	require.Equal(t, "3:00:00", rep.RateLimit.TimeUntilReset)
}

func TestSendMessage_CannedRepliesArePersonalized(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{}, 50)

	rep := send(t, env.svc, "", "hi")
	require.Equal(t, "Hello! How can I help with your resume or job search today?", rep.Response)

	send(t, env.svc, rep.SessionID, "call me Dana")
	rep = send(t, env.svc, rep.SessionID, "hi")
	require.Equal(t, "Hello Dana! How can I help with your resume or job search today?", rep.Response)

	rep = send(t, env.svc, rep.SessionID, "bye")
	require.Equal(t, intent.KindGoodbye, rep.Intent)
	require.Equal(t, "Goodbye Dana! Feel free to return when you need more help with your career.", rep.Response)
}

func TestSendMessage_OffTopicNeedsNoModel(t *testing.T) {
	prov := &fakeProvider{reply: "unused"}
	env := newTestEnv(t, prov, 50)

	rep := send(t, env.svc, "", "how many pushups a day")
	require.Equal(t, intent.KindOffTopic, rep.Intent)
	require.Equal(t, offTopicReply, rep.Response)
	require.Zero(t, prov.callCount())
}

func TestSendMessage_PromptOrder(t *testing.T) {
	prov := &fakeProvider{reply: "Lead with impact."}
	env := newTestEnv(t, prov, 50)

	first := send(t, env.svc, "", "How do I tailor my resume?")
	msgs, opts := prov.lastCall()
	require.Len(t, msgs, 2, "no profile or history yet")
	require.Equal(t, ai.RoleSystem, msgs[0].Role)
	require.Equal(t, systemPrompt, msgs[0].Content)
	require.Equal(t, ai.Message{Role: ai.RoleUser, Content: "How do I tailor my resume?"}, msgs[1])
	require.InDelta(t, 0.7, opts.Temperature, 1e-6)
	require.Equal(t, 1500, opts.MaxTokens)

	send(t, env.svc, first.SessionID, "my name is Dana")
	send(t, env.svc, first.SessionID, "What skills should a data analyst resume list?")

	msgs, _ = prov.lastCall()
	require.Len(t, msgs, 4)
	require.Equal(t, ai.RoleSystem, msgs[1].Role)
	require.True(t, strings.HasPrefix(msgs[1].Content, profileHeader))
	require.Contains(t, msgs[1].Content, "The user's name is Dana")
	require.Equal(t, ai.RoleSystem, msgs[2].Role)
	require.Equal(t, "Previous conversation:\nHuman: How do I tailor my resume?\nAI: Lead with impact.\n"+
		"Human: my name is Dana\nAI: Nice to meet you, Dana! How can I help with your career today?", msgs[2].Content)
	require.Equal(t, ai.RoleUser, msgs[3].Role)
}

func TestSendMessage_RephrasesQuestions(t *testing.T) {
	prov := &fakeProvider{reply: "ok"}
	env := newTestEnv(t, prov, 50)

	rep := send(t, env.svc, "", "Should I list my GPA on my resume? yes or no")
	require.Equal(t, intent.KindYesNoQuestion, rep.Intent)
	msgs, _ := prov.lastCall()
	require.Equal(t, yesNoPrompt("Should I list my GPA on my resume? yes or no"), msgs[len(msgs)-1].Content)

	rep = send(t, env.svc, rep.SessionID, "please rewrite my summary section")
	require.Equal(t, intent.KindRewriteSection, rep.Intent)
	msgs, _ = prov.lastCall()
	require.Equal(t, rewritePrompt("summary"), msgs[len(msgs)-1].Content)
}

func TestSendMessage_JobURLUsesFactualTemperature(t *testing.T) {
	prov := &fakeProvider{reply: "Objective: ..."}
	env := newTestEnv(t, prov, 50)

	rep := send(t, env.svc, "", "https://example.com/job/123")
	require.Equal(t, intent.KindJobURL, rep.Intent)

	msgs, opts := prov.lastCall()
	require.InDelta(t, 0.3, opts.Temperature, 1e-6)
	require.Equal(t, "You're looking at the job description website titled 'Data Analyst'.\n\nHere's the job description:\n\nResponsibilities: SQL",
		msgs[len(msgs)-1].Content)
}

func TestSendMessage_JobURLFetchFailureStillAnswers(t *testing.T) {
	prov := &fakeProvider{reply: "Please paste the posting."}
	env := newTestEnv(t, prov, 50, func(d *Deps) { d.Web = fakeWeb{err: errors.New("dial tcp: timeout")} })

	rep := send(t, env.svc, "", "https://example.com/job/404")
	require.Equal(t, "Please paste the posting.", rep.Response)

	msgs, _ := prov.lastCall()
	require.Contains(t, msgs[len(msgs)-1].Content, "could not be retrieved")
	require.Contains(t, msgs[len(msgs)-1].Content, "dial tcp: timeout")
}

func TestSendMessage_QuotaExhausted(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{}, 50)

	sid := send(t, env.svc, "", "hi").SessionID
	for i := 1; i < 50; i++ {
		env.now = env.now.Add(time.Minute)
		send(t, env.svc, sid, "hi")
	}

	_, err := env.svc.SendMessage(context.Background(), Request{SessionID: sid, Message: "hi"})
	var qe *QuotaError
	require.ErrorAs(t, err, &qe)
	require.Equal(t, 50, qe.Usage.Used)
	require.Equal(t, 0, qe.Usage.Remaining)
	require.Equal(t, 50, qe.Usage.Limit)
	require.NotNil(t, qe.Usage.ResetTime)
	require.Contains(t, qe.Error(), "You've reached the limit of 50 messages")

	st, err := env.limiter.Check(context.Background(), sid)
	require.NoError(t, err)
	require.Equal(t, 50, st.Count, "rejected message must not count")
	require.Len(t, env.session(t, sid).Turns(), 15)

	// the window elapses without a reset
	env.now = env.now.Add(3 * time.Hour)
	rep := send(t, env.svc, sid, "hi")
	require.Equal(t, 1, rep.RateLimit.Used)
}

func TestSendMessage_ProviderFailureDegradesToApology(t *testing.T) {
	prov := &fakeProvider{err: errors.New("connection reset by peer")}
	env := newTestEnv(t, prov, 50)

	rep, err := env.svc.SendMessage(context.Background(), Request{Message: "How do I write a cover letter?"})
	require.NoError(t, err)
	require.Contains(t, rep.Response, "error")
	require.Contains(t, rep.Response, "connection reset by peer")

	turns := env.session(t, rep.SessionID).Turns()
	require.Len(t, turns, 1)
	require.Equal(t, "How do I write a cover letter?", turns[0].User)
	require.Equal(t, rep.Response, turns[0].Assistant)
	require.Equal(t, 1, rep.RateLimit.Used)
}

func TestSendMessage_EmptyCompletionIsAnError(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{reply: "   "}, 50)

	rep := send(t, env.svc, "", "How do I write a cover letter?")
	require.True(t, strings.HasPrefix(rep.Response, "I'm sorry, there was an error"), rep.Response)
}

func TestSendMessage_RejectsEmptyMessage(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{}, 50)

	_, err := env.svc.SendMessage(context.Background(), Request{Message: "  \n"})
	require.ErrorIs(t, err, ErrEmptyMessage)
	status, _ := errx.StatusOf(err)
	require.Equal(t, 400, status)
	require.Zero(t, env.sessions.Len())
}

func TestSendMessage_LimiterFailureFailsOpen(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{}, 50, func(d *Deps) { d.Limiter = brokenLimiter{} })

	rep, err := env.svc.SendMessage(context.Background(), Request{SessionID: "s-1", Message: "hi"})
	require.NoError(t, err)
	require.Equal(t, "s-1", rep.SessionID)
	require.Zero(t, rep.RateLimit.Limit)
}

func TestSendMessage_NoProviderConfigured(t *testing.T) {
	env := newTestEnv(t, nil, 50)

	rep := send(t, env.svc, "", "How do I prepare for an interview?")
	require.Contains(t, rep.Response, "no language model provider configured")
}

func collect(t *testing.T, st *Stream) ([]string, StreamResult) {
	t.Helper()
	var got []string
	for c := range st.Chunks {
		got = append(got, c)
	}
	select {
	case res := <-st.Done:
		return got, res
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not finish")
		return nil, StreamResult{}
	}
}

func TestSendMessageStream_FragmentsMatchPersistedReply(t *testing.T) {
	prov := &streamingProvider{fakeProvider{chunks: []string{"Quantify ", "your ", "impact."}}}
	env := newTestEnv(t, prov, 50)

	st, err := env.svc.SendMessageStream(context.Background(), Request{Message: "How do I improve my resume bullets?"})
	require.NoError(t, err)
	require.NotEmpty(t, st.SessionID)

	got, res := collect(t, st)
	require.NoError(t, res.Err)
	require.Equal(t, []string{"Quantify ", "your ", "impact."}, got)
	require.Equal(t, strings.Join(got, ""), res.Reply.Response)
	require.Equal(t, st.SessionID, res.Reply.SessionID)

	turns := env.session(t, st.SessionID).Turns()
	require.Len(t, turns, 1)
	require.Equal(t, res.Reply.Response, turns[0].Assistant)

	// the blocking path yields the same text for the same provider
	blocking := send(t, env.svc, "", "How do I improve my resume bullets?")
	require.Equal(t, res.Reply.Response, blocking.Response)
}

func TestSendMessageStream_ErrorAfterPartialText(t *testing.T) {
	prov := &streamingProvider{fakeProvider{chunks: []string{"Start with "}, err: errors.New("stream reset")}}
	env := newTestEnv(t, prov, 50)

	st, err := env.svc.SendMessageStream(context.Background(), Request{Message: "How do I write a cover letter?"})
	require.NoError(t, err)

	got, res := collect(t, st)
	require.NoError(t, res.Err)
	require.Len(t, got, 2)
	require.Equal(t, "Start with ", got[0])
	require.Contains(t, got[1], "stream reset")
	require.Equal(t, strings.Join(got, ""), res.Reply.Response)
	require.Equal(t, res.Reply.Response, env.session(t, st.SessionID).Turns()[0].Assistant)
}

func TestSendMessageStream_CannedReplyIsOneFragment(t *testing.T) {
	env := newTestEnv(t, &streamingProvider{}, 50)

	st, err := env.svc.SendMessageStream(context.Background(), Request{Message: "hello"})
	require.NoError(t, err)

	got, res := collect(t, st)
	require.NoError(t, res.Err)
	require.Equal(t, []string{res.Reply.Response}, got)
}

func TestSendMessageStream_CancelDiscardsTurn(t *testing.T) {
	env := newTestEnv(t, hangingProvider{}, 50)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := env.svc.SendMessageStream(ctx, Request{SessionID: "s-cancel", Message: "How do I negotiate salary?"})
	require.NoError(t, err)

	require.Equal(t, "first", <-st.Chunks)
	cancel()

	_, res := collect(t, st)
	require.ErrorIs(t, res.Err, context.Canceled)
	require.Nil(t, res.Reply)

	require.Empty(t, env.session(t, "s-cancel").Turns())
	status, err := env.limiter.Check(context.Background(), "s-cancel")
	require.NoError(t, err)
	require.Zero(t, status.Count)
}

func TestSendMessageStream_QuotaRejectedBeforeStreaming(t *testing.T) {
	env := newTestEnv(t, &streamingProvider{}, 1)

	sid := send(t, env.svc, "", "hi").SessionID
	_, err := env.svc.SendMessageStream(context.Background(), Request{SessionID: sid, Message: "hi"})
	var qe *QuotaError
	require.ErrorAs(t, err, &qe)
}

func TestManageSession_NewRotatesMemoryAndQuota(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{}, 50)
	ctx := context.Background()

	old := send(t, env.svc, "", "my name is Dana").SessionID
	send(t, env.svc, old, "hi")

	res, err := env.svc.ManageSession(ctx, SessionRequest{Action: ActionNew, SessionID: old})
	require.NoError(t, err)
	require.NotEqual(t, old, res.SessionID)

	fresh := env.session(t, res.SessionID)
	assert.Empty(t, fresh.Turns())
	assert.Empty(t, fresh.Profile())

	u, err := env.svc.RateLimitStatus(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Zero(t, u.Used)
	assert.Nil(t, u.ResetTime)

	u, err = env.svc.RateLimitStatus(ctx, old)
	require.NoError(t, err)
	assert.Equal(t, 2, u.Used, "quota stays with the old id")
}

func TestManageSession_Actions(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{}, 50)
	ctx := context.Background()

	sid := send(t, env.svc, "", "my name is Dana").SessionID
	send(t, env.svc, sid, "hi")

	res, err := env.svc.ManageSession(ctx, SessionRequest{Action: ActionInfo, SessionID: sid})
	require.NoError(t, err)
	require.Equal(t, 1, res.Info.ProfileFields)
	require.Equal(t, 2, res.Info.Turns)

	res, err = env.svc.ManageSession(ctx, SessionRequest{Action: ActionExport, SessionID: sid})
	require.NoError(t, err)
	require.Equal(t, "Dana", res.Export.Profile["name"])
	require.Len(t, res.Export.Turns, 2)

	_, err = env.svc.ManageSession(ctx, SessionRequest{Action: ActionClearUser, SessionID: sid})
	require.NoError(t, err)
	require.Empty(t, env.session(t, sid).Profile())
	require.Len(t, env.session(t, sid).Turns(), 2)

	_, err = env.svc.ManageSession(ctx, SessionRequest{Action: ActionClearHistory, SessionID: sid})
	require.NoError(t, err)
	require.Empty(t, env.session(t, sid).Turns())

	_, err = env.svc.ManageSession(ctx, SessionRequest{Action: "explode", SessionID: sid})
	require.ErrorIs(t, err, ErrInvalidAction)

	_, err = env.svc.ManageSession(ctx, SessionRequest{Action: ActionInfo})
	require.ErrorIs(t, err, ErrMissingSession)
}

func TestResetRateLimit(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{}, 1)
	ctx := context.Background()

	sid := send(t, env.svc, "", "hi").SessionID
	records, err := env.svc.ListRateLimits(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	require.NoError(t, env.svc.ResetRateLimit(ctx, sid))
	send(t, env.svc, sid, "hi")
}

const resumeText = "Dana Scully. Professional Summary: forensic analyst. Professional Experience: FBI 1993-2002. " +
	"Education: MD. Skills: statistics, pathology. Certifications: board certified."

func TestProcessDocument_Resume(t *testing.T) {
	prov := &fakeProvider{reply: "Strong background."}
	env := newTestEnv(t, prov, 50, func(d *Deps) { d.Documents = fakeDocs{text: resumeText} })

	rep, err := env.svc.ProcessDocument(context.Background(), DocumentRequest{Filename: "cv.PDF", Data: strings.NewReader("%PDF")})
	require.NoError(t, err)
	require.Equal(t, extract.DocResume, rep.DocType)
	require.Equal(t, "Strong background.", rep.Response)
	require.Equal(t, 1, rep.RateLimit.Used)

	msgs, opts := prov.lastCall()
	require.Equal(t, resumeAnalysisPrompt+resumeText, msgs[len(msgs)-1].Content)
	require.InDelta(t, 0.7, opts.Temperature, 1e-6)

	sess := env.session(t, rep.SessionID)
	require.Equal(t, resumeText, sess.Profile()["uploaded_resume_text"])
	require.Equal(t, "[Uploaded resume PDF: cv.PDF]", sess.Turns()[0].User)
}

func TestProcessDocument_PlaceholderSkipsModel(t *testing.T) {
	prov := &fakeProvider{reply: "unused"}
	env := newTestEnv(t, prov, 50, func(d *Deps) { d.Documents = fakeDocs{text: extract.LittleTextPlaceholder} })

	rep, err := env.svc.ProcessDocument(context.Background(), DocumentRequest{Filename: "scan.pdf", Data: strings.NewReader("%PDF")})
	require.NoError(t, err)
	require.Equal(t, extract.DocUnknown, rep.DocType)
	require.Equal(t, extract.LittleTextPlaceholder, rep.Response)
	require.Zero(t, prov.callCount())
	require.Equal(t, "[Uploaded unknown PDF: scan.pdf]", env.session(t, rep.SessionID).Turns()[0].User)
}

func TestProcessDocument_TextIsJobDescription(t *testing.T) {
	prov := &fakeProvider{reply: "Objective: ..."}
	env := newTestEnv(t, prov, 50)
	long := strings.Repeat("Responsibilities include reporting. ", 30)

	rep, err := env.svc.ProcessDocument(context.Background(), DocumentRequest{Filename: "posting.txt", Data: strings.NewReader(long)})
	require.NoError(t, err)
	require.Equal(t, extract.DocJobDescription, rep.DocType)
	require.Equal(t, intent.KindJobDescription, rep.Intent)

	_, opts := prov.lastCall()
	require.InDelta(t, 0.3, opts.Temperature, 1e-6)

	stored := env.session(t, rep.SessionID).Profile().String("uploaded_job_description_text")
	require.True(t, strings.HasSuffix(stored, "..."))
	require.Len(t, []rune(stored), previewRunes+3)
}

func TestProcessDocument_InputErrors(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{}, 50)
	ctx := context.Background()

	_, err := env.svc.ProcessDocument(ctx, DocumentRequest{Filename: "cv.docx", Data: strings.NewReader("x")})
	require.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = env.svc.ProcessDocument(ctx, DocumentRequest{Filename: "bad.txt", Data: strings.NewReader("\xff\xfe\xfd")})
	require.ErrorIs(t, err, ErrNotUTF8)

	_, err = env.svc.ProcessDocument(ctx, DocumentRequest{Filename: "", Data: strings.NewReader("x")})
	require.ErrorIs(t, err, ErrNoFile)

	require.Zero(t, env.sessions.Len())
}

func TestEnqueueMessage_Disabled(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{}, 50)

	_, _, err := env.svc.EnqueueMessage(context.Background(), Request{Message: "hi"}, "")
	require.ErrorIs(t, err, ErrAsyncDisabled)
	status, _ := errx.StatusOf(err)
	require.Equal(t, 503, status)
}

func TestFormatRemaining(t *testing.T) {
	require.Equal(t, "2:59:59", formatRemaining(3*time.Hour-time.Second-300*time.Millisecond))
	require.Equal(t, "0:00:00", formatRemaining(-time.Minute))
	require.Equal(t, "27:05:09", formatRemaining(27*time.Hour+5*time.Minute+9*time.Second))
}
