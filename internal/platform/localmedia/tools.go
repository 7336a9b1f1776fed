package localmedia

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/semaphore"

	"github.com/telansky/multigpt/internal/observability"
	"github.com/telansky/multigpt/internal/platform/envutil"
	"github.com/telansky/multigpt/internal/platform/logger"
)

// Tools wraps the system binaries the extraction pipelines shell out to.
//
// REQUIRED BINARIES in the serving image:
// - libreoffice (soffice) for Office/text -> PDF conversion
// - ffmpeg for video -> audio demux
//
// Subprocess runs share one weighted semaphore so a burst of uploads
// cannot fork an unbounded number of converters.
type Tools interface {
	AssertReady(ctx context.Context) error

	// WriteTempFile stages data under the work root with a unique name
	// carrying suffix. The returned cleanup is safe to call more than once.
	WriteTempFile(ctx context.Context, data []byte, suffix string) (string, func(), error)

	// MkWorkDir creates an isolated request-scoped directory. cleanup
	// removes the directory and everything in it.
	MkWorkDir(ctx context.Context, prefix string) (string, func(), error)

	ConvertOfficeToPDF(ctx context.Context, inputPath string, outDir string) (pdfPath string, err error)

	ExtractAudioFromVideo(ctx context.Context, videoPath string, outPath string, opts AudioExtractOptions) (string, error)

	// InspectPDF validates the file and returns its page count.
	InspectPDF(path string) (int, error)
}

type AudioExtractOptions struct {
	SampleRateHz int
	Channels     int
}

type Options struct {
	SofficePath string
	FFmpegPath  string
	WorkRoot    string
	// ConvertTimeout is the hard wall-clock cap on one soffice run.
	ConvertTimeout time.Duration
	DemuxTimeout   time.Duration
	MaxConcurrent  int64
}

func OptionsFromEnv() Options {
	return Options{
		SofficePath:    envutil.Str("SOFFICE_PATH", "soffice"),
		FFmpegPath:     envutil.Str("FFMPEG_PATH", "ffmpeg"),
		WorkRoot:       envutil.Str("MEDIA_WORK_ROOT", "/tmp/multigpt-media"),
		ConvertTimeout: envutil.Seconds("SOFFICE_TIMEOUT_SECONDS", 120*time.Second),
		DemuxTimeout:   envutil.Seconds("FFMPEG_TIMEOUT_SECONDS", 10*time.Minute),
		MaxConcurrent:  int64(envutil.Int("MEDIA_MAX_CONCURRENT", 4)),
	}
}

type tools struct {
	log *logger.Logger

	sofficePath string
	ffmpegPath  string
	workRoot    string

	convertTimeout time.Duration
	demuxTimeout   time.Duration

	sem *semaphore.Weighted
}

func New(opts Options, log *logger.Logger) Tools {
	if opts.SofficePath == "" {
		opts.SofficePath = "soffice"
	}
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.WorkRoot == "" {
		opts.WorkRoot = "/tmp/multigpt-media"
	}
	if opts.ConvertTimeout <= 0 {
		opts.ConvertTimeout = 120 * time.Second
	}
	if opts.DemuxTimeout <= 0 {
		opts.DemuxTimeout = 10 * time.Minute
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	return &tools{
		log:            log.With("service", "MediaTools"),
		sofficePath:    opts.SofficePath,
		ffmpegPath:     opts.FFmpegPath,
		workRoot:       opts.WorkRoot,
		convertTimeout: opts.ConvertTimeout,
		demuxTimeout:   opts.DemuxTimeout,
		sem:            semaphore.NewWeighted(opts.MaxConcurrent),
	}
}

func (m *tools) AssertReady(ctx context.Context) error {
	for _, bin := range []string{m.sofficePath, m.ffmpegPath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("missing required binary %q in PATH: %w", bin, err)
		}
	}
	if err := os.MkdirAll(m.workRoot, 0o755); err != nil {
		return fmt.Errorf("create workRoot: %w", err)
	}
	return nil
}

func (m *tools) WriteTempFile(ctx context.Context, data []byte, suffix string) (string, func(), error) {
	if err := os.MkdirAll(m.workRoot, 0o755); err != nil {
		return "", func() {}, fmt.Errorf("mkdir workRoot: %w", err)
	}
	if suffix != "" && !strings.HasPrefix(suffix, ".") {
		suffix = "." + suffix
	}
	// Name from a fresh id, not a content hash: concurrent uploads of
	// identical bytes must never share a path.
	path := filepath.Join(m.workRoot, uuid.NewString()+suffix)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", func() {}, fmt.Errorf("write temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(path) }
	return path, cleanup, nil
}

func (m *tools) MkWorkDir(ctx context.Context, prefix string) (string, func(), error) {
	if err := os.MkdirAll(m.workRoot, 0o755); err != nil {
		return "", func() {}, fmt.Errorf("mkdir workRoot: %w", err)
	}
	if prefix == "" {
		prefix = "job_"
	}
	dir := filepath.Join(m.workRoot, prefix+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", func() {}, fmt.Errorf("mkdir workdir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }
	return dir, cleanup, nil
}

func (m *tools) ConvertOfficeToPDF(ctx context.Context, inputPath string, outDir string) (string, error) {
	if inputPath == "" {
		return "", fmt.Errorf("inputPath required")
	}
	if outDir == "" {
		return "", fmt.Errorf("outDir required")
	}
	if _, err := exec.LookPath(m.sofficePath); err != nil {
		return "", fmt.Errorf("missing required binary %q in PATH: %w", m.sofficePath, err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir outDir: %w", err)
	}

	out, err := m.runCmd(ctx, "soffice", m.convertTimeout, m.sofficePath,
		"--headless",
		"--nologo",
		"--nolockcheck",
		"--nodefault",
		"--norestore",
		"--convert-to", "pdf",
		"--outdir", outDir,
		inputPath,
	)
	if err != nil {
		return "", fmt.Errorf("soffice convert failed: %w; out=%s", err, string(out))
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	pdfPath := filepath.Join(outDir, base+".pdf")

	if _, statErr := os.Stat(pdfPath); statErr != nil {
		pdfPath2, err2 := newestFileWithExt(outDir, ".pdf")
		if err2 != nil {
			return "", fmt.Errorf("pdf output not found at %s and scan failed: %v; soffice out=%s", pdfPath, err2, string(out))
		}
		pdfPath = pdfPath2
	}

	return pdfPath, nil
}

func (m *tools) ExtractAudioFromVideo(ctx context.Context, videoPath string, outPath string, opts AudioExtractOptions) (string, error) {
	if videoPath == "" {
		return "", fmt.Errorf("videoPath required")
	}
	if outPath == "" {
		return "", fmt.Errorf("outPath required")
	}
	if _, err := exec.LookPath(m.ffmpegPath); err != nil {
		return "", fmt.Errorf("missing required binary %q in PATH: %w", m.ffmpegPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("mkdir outPath dir: %w", err)
	}

	sr := opts.SampleRateHz
	if sr <= 0 {
		sr = 16000
	}
	ch := opts.Channels
	if ch <= 0 {
		ch = 1
	}

	out, err := m.runCmd(ctx, "ffmpeg", m.demuxTimeout, m.ffmpegPath,
		"-y",
		"-i", videoPath,
		"-vn",
		"-ac", strconv.Itoa(ch),
		"-ar", strconv.Itoa(sr),
		"-f", "wav",
		outPath,
	)
	if err != nil {
		return "", fmt.Errorf("ffmpeg extract audio failed: %w; out=%s", err, string(out))
	}

	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("audio output missing at %s", outPath)
	}
	return outPath, nil
}

func (m *tools) InspectPDF(path string) (int, error) {
	if path == "" {
		return 0, fmt.Errorf("path required")
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return 0, fmt.Errorf("invalid pdf: %w", err)
	}
	if pdfCtx.PageCount <= 0 {
		return 0, fmt.Errorf("pdf has no pages")
	}
	return pdfCtx.PageCount, nil
}

// runCmd acquires a concurrency slot, runs the binary under its timeout
// and reports the outcome to metrics.
func (m *tools) runCmd(ctx context.Context, tool string, timeout time.Duration, bin string, args ...string) ([]byte, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer m.sem.Release(1)

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(cctx, bin, args...)
	out, err := cmd.CombinedOutput()

	if metrics := observability.Current(); metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.ObserveMediaJob(tool, status, time.Since(start))
	}
	if err != nil && cctx.Err() == context.DeadlineExceeded {
		return out, fmt.Errorf("%s timed out after %s: %w", tool, timeout, err)
	}
	return out, err
}

func newestFileWithExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(e.Name())) != ext {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = filepath.Join(dir, e.Name())
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no %s files in %s", ext, dir)
	}
	return newest, nil
}
