// Package extract turns uploaded PDFs and job-posting web pages into plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/samber/lo"
)

type DocType string

const (
	DocResume         DocType = "resume"
	DocJobDescription DocType = "job_description"
	DocUnknown        DocType = "unknown"
)

const (
	// MinTextLength is the size under which extracted text is assumed to be a scan.
	MinTextLength = 100
	// MinScore is the keyword score a category must exceed to win.
	MinScore = 2

	LittleTextPlaceholder = "The PDF appears to contain little text. It might be a scanned document without OCR processing."
	errorPrefix           = "Error extracting text from PDF: "
)

var (
	resumeKeywords = keywordSet(
		"resume", "curriculum vitae", "cv", "professional experience", "education", "skills",
		"certifications", "references", "work history", "employment history", "professional summary",
	)
	jobKeywords = keywordSet(
		"job description", "responsibilities", "requirements", "qualifications", "we are seeking",
		"about the role", "about the position", "job summary", "position summary", "duties",
		"about the company",
	)
)

func keywordSet(words ...string) []*regexp.Regexp {
	return lo.Map(words, func(w string, _ int) *regexp.Regexp {
		return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
	})
}

func score(text string, set []*regexp.Regexp) int {
	return lo.CountBy(set, func(re *regexp.Regexp) bool { return re.MatchString(text) })
}

// Classify labels text as a resume or job description when that category's keyword score
// beats the other and exceeds MinScore. Short text is never classified.
func Classify(text string) DocType {
	if len(strings.TrimSpace(text)) < MinTextLength {
		return DocUnknown
	}
	r, j := score(text, resumeKeywords), score(text, jobKeywords)
	switch {
	case r > j && r > MinScore:
		return DocResume
	case j > r && j > MinScore:
		return DocJobDescription
	default:
		return DocUnknown
	}
}

// IsPlaceholder reports whether text is one of the strings PDFExtractor returns instead of content.
func IsPlaceholder(text string) bool {
	return text == LittleTextPlaceholder || strings.HasPrefix(text, errorPrefix)
}

// PDFExtractor never fails: unreadable input yields a descriptive placeholder.
type PDFExtractor struct {
	MaxBytes int64
	readText func(data []byte) (string, error)
}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{MaxBytes: 16 << 20, readText: readPDFText}
}

func (e *PDFExtractor) Extract(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, e.MaxBytes+1))
	if err != nil {
		return errorPrefix + err.Error()
	}
	if int64(len(data)) > e.MaxBytes {
		return errorPrefix + fmt.Sprintf("file larger than %d bytes", e.MaxBytes)
	}

	text, err := e.readText(data)
	if err != nil {
		return errorPrefix + err.Error()
	}
	text = strings.TrimSpace(text)
	if len(text) < MinTextLength {
		return LittleTextPlaceholder
	}
	return text
}

// readPDFText recovers from parser panics, which malformed files can trigger.
func readPDFText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	if reader.NumPage() == 0 {
		return "", errors.New("pdf has no pages")
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
