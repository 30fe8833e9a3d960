package chat

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/suPer8Hu/careerbot/internal/errx"
	"github.com/suPer8Hu/careerbot/internal/extract"
	"github.com/suPer8Hu/careerbot/internal/intent"
	"github.com/suPer8Hu/careerbot/internal/logx"
)

const maxTextUpload = 1 << 20

type DocumentRequest struct {
	SessionID string
	UserID    uint64
	Filename  string
	Data      io.Reader
}

type DocumentReply struct {
	Reply
	DocType extract.DocType `json:"doc_type"`
}

// ProcessDocument handles an uploaded resume or job description. PDFs are
// extracted and classified; plain text is treated as a job description.
// An upload consumes quota like a message.
func (s *Service) ProcessDocument(ctx context.Context, req DocumentRequest) (*DocumentReply, error) {
	name := strings.TrimSpace(filepath.Base(req.Filename))
	if req.Data == nil || name == "" || name == "." {
		return nil, errx.BadRequest(ErrNoFile)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".pdf" && ext != ".txt" {
		return nil, errx.BadRequest(ErrUnsupportedFile)
	}
	if err := s.checkQuota(ctx, req.SessionID); err != nil {
		return nil, err
	}

	var (
		text string
		doc  extract.DocType
	)
	switch ext {
	case ".pdf":
		text = s.documents.Extract(req.Data)
		doc = extract.Classify(text)
	case ".txt":
		raw, err := io.ReadAll(io.LimitReader(req.Data, maxTextUpload+1))
		if err != nil {
			return nil, errx.BadRequest(fmt.Errorf("read upload: %w", err))
		}
		if len(raw) > maxTextUpload {
			return nil, errx.BadRequest(ErrFileTooLarge)
		}
		if !utf8.Valid(raw) {
			return nil, errx.BadRequest(ErrNotUTF8)
		}
		text = strings.TrimSpace(string(raw))
		if text == "" {
			return nil, errx.BadRequest(ErrEmptyMessage)
		}
		doc = extract.DocJobDescription
	}

	sess := s.sessions.LoadOrCreate(ctx, req.SessionID, req.UserID)
	logx.Info().
		Str("session_id", sess.ID()).
		Str("file", name).
		Str("doc_type", string(doc)).
		Int("chars", len(text)).
		Msg("document uploaded")

	var (
		reply string
		kind  intent.Kind
	)
	switch {
	case extract.IsPlaceholder(text):
		reply = text
	case doc == extract.DocResume:
		sess.StoreProfileField(ctx, uploadField(doc), preview(text))
		kind = intent.KindCareerQuestion
		reply = s.complete(ctx, sess, resumeAnalysisPrompt+text, s.conversational, nil)
	default:
		sess.StoreProfileField(ctx, uploadField(doc), preview(text))
		kind = intent.KindJobDescription
		reply = s.complete(ctx, sess, text, s.factual, nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rep := s.commit(ctx, sess, fmt.Sprintf(uploadTurnFormat, doc, name), reply, kind)
	return &DocumentReply{Reply: *rep, DocType: doc}, nil
}

func uploadField(doc extract.DocType) string {
	return fmt.Sprintf("uploaded_%s_text", doc)
}
