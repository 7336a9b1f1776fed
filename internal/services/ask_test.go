package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/telansky/multigpt/internal/domain"
	"github.com/telansky/multigpt/internal/filekind"
	"github.com/telansky/multigpt/internal/modelcatalog"
	"github.com/telansky/multigpt/internal/platform/apierr"
	"github.com/telansky/multigpt/internal/platform/promptstyle"
)

const askTestCatalog = `
catalog: models
version: 1
default: gpt-4o-mini
stt_default: gpt-4o-mini-transcribe
models:
  - id: gpt-4o-mini
    vision: true
  - id: gpt-4o
    vision: true
  - id: gpt-3.5-turbo
  - id: gpt-4o-mini-transcribe
    transcribe: true
`

func testAskCatalog(t *testing.T) *modelcatalog.Catalog {
	t.Helper()
	cat, err := modelcatalog.Parse([]byte(askTestCatalog))
	if err != nil {
		t.Fatalf("Parse catalog: %v", err)
	}
	return cat
}

type fakeTextAnswer struct {
	calls      int
	lastQuery  string
	lastPrompt string
	lastModel  string
	answer     string
	err        error
}

func (f *fakeTextAnswer) Answer(_ context.Context, query, prompt, model string) (string, error) {
	f.calls++
	f.lastQuery, f.lastPrompt, f.lastModel = query, prompt, model
	return f.answer, f.err
}

// fakePipeline satisfies every per-category summary interface; the
// signatures are identical.
type fakePipeline struct {
	calls      int
	lastUpload domain.Upload
	lastPrompt string
	lastModel  string
	answer     string
	err        error
}

func (f *fakePipeline) Summarise(_ context.Context, upload domain.Upload, prompt, model string) (string, error) {
	f.calls++
	f.lastUpload, f.lastPrompt, f.lastModel = upload, prompt, model
	return f.answer, f.err
}

type askFixture struct {
	svc      AskService
	text     *fakeTextAnswer
	audio    *fakePipeline
	video    *fakePipeline
	document *fakePipeline
	image    *fakePipeline
}

func newAskFixture(t *testing.T) *askFixture {
	t.Helper()
	f := &askFixture{
		text:     &fakeTextAnswer{answer: "text answer"},
		audio:    &fakePipeline{answer: "audio summary"},
		video:    &fakePipeline{answer: "video summary"},
		document: &fakePipeline{answer: "document summary"},
		image:    &fakePipeline{answer: "image summary"},
	}
	f.svc = NewAskService(testAskCatalog(t), f.text, f.audio, f.video, f.document, f.image, testLog(t))
	return f
}

func wantAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status=%d code=%s, got nil", status, code)
	}
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *apierr.Error, got %T: %v", err, err)
	}
	if ae.Status != status || ae.Code != code {
		t.Fatalf("api error: want status=%d code=%s got status=%d code=%s", status, code, ae.Status, ae.Code)
	}
}

func TestAskRejectsWhenQueryAndFileAbsent(t *testing.T) {
	f := newAskFixture(t)
	_, err := f.svc.Ask(context.Background(), domain.AskRequest{Model: "gpt-4o"})
	wantAPIError(t, err, http.StatusUnprocessableEntity, "missing_query_or_file")
}

func TestAskRejectsTranscribeOnlyModel(t *testing.T) {
	f := newAskFixture(t)
	_, err := f.svc.Ask(context.Background(), domain.AskRequest{
		Query: "hello",
		Model: "gpt-4o-mini-transcribe",
	})
	wantAPIError(t, err, http.StatusUnprocessableEntity, "stt_model_selected")

	// Suffix rule catches ids the catalog never listed.
	_, err = f.svc.Ask(context.Background(), domain.AskRequest{
		Query: "hello",
		Model: "whisper-large-transcribe",
	})
	wantAPIError(t, err, http.StatusUnprocessableEntity, "stt_model_selected")
}

func TestAskRejectsUnknownModel(t *testing.T) {
	f := newAskFixture(t)
	_, err := f.svc.Ask(context.Background(), domain.AskRequest{Query: "hello", Model: "gpt-9000"})
	wantAPIError(t, err, http.StatusUnprocessableEntity, "unknown_model")
}

func TestAskTextOnlyUsesDefaultModelAndPrompt(t *testing.T) {
	f := newAskFixture(t)
	res, err := f.svc.Ask(context.Background(), domain.AskRequest{Query: "what is ai?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Answer != "text answer" {
		t.Fatalf("answer: got=%q", res.Answer)
	}
	if res.Model != "gpt-4o-mini" {
		t.Fatalf("model: want=gpt-4o-mini got=%s", res.Model)
	}
	if res.Category != "" {
		t.Fatalf("category must be empty for text-only, got=%q", res.Category)
	}
	if f.text.calls != 1 {
		t.Fatalf("text calls: want=1 got=%d", f.text.calls)
	}
	if f.text.lastModel != "gpt-4o-mini" {
		t.Fatalf("text model: got=%s", f.text.lastModel)
	}
	if f.text.lastPrompt != promptstyle.DefaultSummaryPrompt {
		t.Fatalf("default prompt not applied: got=%q", f.text.lastPrompt)
	}
}

func TestAskPassesCustomPromptThrough(t *testing.T) {
	f := newAskFixture(t)
	if _, err := f.svc.Ask(context.Background(), domain.AskRequest{
		Query:  "q",
		Prompt: "Answer in French.",
	}); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if f.text.lastPrompt != "Answer in French." {
		t.Fatalf("custom prompt: got=%q", f.text.lastPrompt)
	}
}

func TestAskRoutesUploadsByCategory(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		want     filekind.Category
		answer   string
	}{
		{"video", "lecture.MP4", filekind.CategoryVideo, "video summary"},
		{"audio", "call.mp3", filekind.CategoryAudio, "audio summary"},
		{"document", "report.docx", filekind.CategoryText, "document summary"},
		{"image", "chart.png", filekind.CategoryImage, "image summary"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAskFixture(t)
			res, err := f.svc.Ask(context.Background(), domain.AskRequest{
				Model:  "gpt-4o",
				Upload: &domain.Upload{Name: tc.filename, Data: []byte("bytes")},
			})
			if err != nil {
				t.Fatalf("Ask: %v", err)
			}
			if res.Answer != tc.answer {
				t.Fatalf("answer: want=%q got=%q", tc.answer, res.Answer)
			}
			if res.Category != tc.want {
				t.Fatalf("category: want=%s got=%s", tc.want, res.Category)
			}

			total := f.audio.calls + f.video.calls + f.document.calls + f.image.calls + f.text.calls
			if total != 1 {
				t.Fatalf("exactly one pipeline must run, got %d calls", total)
			}
		})
	}
}

func TestAskUploadWithoutQueryIsAllowed(t *testing.T) {
	f := newAskFixture(t)
	res, err := f.svc.Ask(context.Background(), domain.AskRequest{
		Model:  "gpt-4o",
		Upload: &domain.Upload{Name: "talk.wav", Data: []byte("a")},
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Category != filekind.CategoryAudio {
		t.Fatalf("category: got=%s", res.Category)
	}
}

func TestAskRejectsArchiveUploads(t *testing.T) {
	f := newAskFixture(t)
	_, err := f.svc.Ask(context.Background(), domain.AskRequest{
		Model:  "gpt-4o",
		Upload: &domain.Upload{Name: "backup.tar.gz", Data: []byte("x")},
	})
	wantAPIError(t, err, http.StatusUnprocessableEntity, "unsupported_file_type")
	if f.document.calls+f.text.calls != 0 {
		t.Fatalf("no pipeline may run for archives")
	}
}

func TestAskRejectsUnknownExtension(t *testing.T) {
	f := newAskFixture(t)
	_, err := f.svc.Ask(context.Background(), domain.AskRequest{
		Model:  "gpt-4o",
		Upload: &domain.Upload{Name: "notes.xyz", Data: []byte("x")},
	})
	wantAPIError(t, err, http.StatusUnprocessableEntity, "unsupported_file_type")
}

func TestAskVisionGateForImages(t *testing.T) {
	f := newAskFixture(t)
	_, err := f.svc.Ask(context.Background(), domain.AskRequest{
		Model:  "gpt-3.5-turbo",
		Upload: &domain.Upload{Name: "chart.png", Data: []byte("x")},
	})
	wantAPIError(t, err, http.StatusUnprocessableEntity, "model_not_vision_capable")
	if f.image.calls != 0 {
		t.Fatalf("image pipeline must not run for non-vision model")
	}
	if err != nil && !strings.Contains(err.Error(), "gpt-3.5-turbo") {
		t.Fatalf("error should name the model: %v", err)
	}
}

func TestAskNonVisionModelStillSummarisesDocuments(t *testing.T) {
	// The vision gate applies to images only; documents ride the file
	// upload path regardless.
	f := newAskFixture(t)
	res, err := f.svc.Ask(context.Background(), domain.AskRequest{
		Model:  "gpt-3.5-turbo",
		Upload: &domain.Upload{Name: "report.pdf", Data: []byte("%PDF")},
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Category != filekind.CategoryText {
		t.Fatalf("category: got=%s", res.Category)
	}
	if f.document.calls != 1 {
		t.Fatalf("document calls: want=1 got=%d", f.document.calls)
	}
}

func TestAskPipelineErrorPropagates(t *testing.T) {
	f := newAskFixture(t)
	f.video.err = errors.New("ffmpeg not installed")
	_, err := f.svc.Ask(context.Background(), domain.AskRequest{
		Model:  "gpt-4o",
		Upload: &domain.Upload{Name: "clip.mov", Data: []byte("x")},
	})
	if err == nil || !strings.Contains(err.Error(), "ffmpeg not installed") {
		t.Fatalf("pipeline error must propagate, got: %v", err)
	}
}
