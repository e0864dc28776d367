package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"datasetscraper/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

// fakeRunner records calls and runs effect to simulate the tool's output
type fakeRunner struct {
	calls  []call
	effect func(args []string) error
}

func (f *fakeRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	if f.effect != nil {
		if err := f.effect(args); err != nil {
			return []byte("tool said no"), err
		}
	}
	return nil, nil
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(filepath.Base(path)), 0644))
}

func TestCleanName(t *testing.T) {
	assert.Equal(t, "Foggy_Town_4K_Walk", CleanName("Foggy Town: 4K Walk!"))
	assert.Equal(t, "a-b_c", CleanName("a-b_c"))
	assert.Equal(t, "Ça_va", CleanName("Ça va ?"))
	assert.Equal(t, "video", CleanName("!!!"))
}

func TestYtDlpArgs(t *testing.T) {
	y := NewYtDlp("", "/data/videos")

	args := y.Args("foggy town", 3)
	assert.Equal(t, "ytsearch3:foggy town", args[len(args)-1])
	assert.Contains(t, args, "--ignore-errors")
	assert.Contains(t, args, "--no-overwrites")
	assert.Contains(t, args, filepath.Join("/data/videos", "%(title)s.%(ext)s"))

	args = y.Args("https://www.youtube.com/watch?v=abc", 3)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc", args[len(args)-1])

	args = y.Args("cats", 0)
	assert.Equal(t, "ytsearch1:cats", args[len(args)-1])
}

func TestYtDlpAcquire_ReturnsOnlyNewVideos(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "Old One.mp4"))
	fake := &fakeRunner{effect: func(args []string) error {
		touch(t, filepath.Join(dir, "New One.webm"))
		touch(t, filepath.Join(dir, "New One.webm.part.txt"))
		return nil
	}}
	y := NewYtDlp("yt-dlp-test", dir)
	y.run = fake.run

	added, err := y.Acquire(context.Background(), "foggy town", 2)

	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "New One.webm")}, added)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "yt-dlp-test", fake.calls[0].name)
}

func TestYtDlpAcquire_PartialFailure(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeRunner{effect: func(args []string) error {
		touch(t, filepath.Join(dir, "Survivor.mp4"))
		return errors.New("exit status 1")
	}}
	y := NewYtDlp("", dir)
	y.run = fake.run

	added, err := y.Acquire(context.Background(), "q", 2)

	require.NoError(t, err)
	assert.Len(t, added, 1)
}

func TestYtDlpAcquire_TotalFailure(t *testing.T) {
	y := NewYtDlp("", t.TempDir())
	y.run = (&fakeRunner{effect: func([]string) error { return errors.New("exit status 1") }}).run

	_, err := y.Acquire(context.Background(), "q", 2)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool said no")
}

func TestYtDlpAcquire_EmptyQuery(t *testing.T) {
	_, err := NewYtDlp("", t.TempDir()).Acquire(context.Background(), "  ", 1)
	assert.Error(t, err)
}

// frameWriter simulates ffmpeg writing n frames to the output pattern
func frameWriter(t *testing.T, n int) func(args []string) error {
	return func(args []string) error {
		pattern := args[len(args)-1]
		for i := 1; i <= n; i++ {
			touch(t, strings.Replace(pattern, "%06d", fmt.Sprintf("%06d", i), 1))
		}
		return nil
	}
}

func TestFFmpegArgs(t *testing.T) {
	s := NewFFmpegSampler("", 0.5)

	args := s.Args("/v/Foggy Town.mp4", "/frames")

	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "/v/Foggy Town.mp4",
		"-vf", "fps=0.5",
		"-q:v", "2",
		"-y",
		filepath.Join("/frames", "Foggy_Town_frame_%06d.jpg"),
	}, args)
}

func TestFFmpegSample(t *testing.T) {
	out := filepath.Join(t.TempDir(), "frames")
	s := NewFFmpegSampler("ffmpeg-test", 1)
	fake := &fakeRunner{effect: frameWriter(t, 3)}
	s.run = fake.run

	assert.False(t, s.IsProcessed("/v/clip.mp4", out))
	frames, err := s.Sample(context.Background(), "/v/clip.mp4", out)

	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(out, "clip_frame_000001.jpg"),
		filepath.Join(out, "clip_frame_000002.jpg"),
		filepath.Join(out, "clip_frame_000003.jpg"),
	}, frames)
	assert.True(t, s.IsProcessed("/v/clip.mp4", out))
	assert.False(t, s.IsProcessed("/v/other.mp4", out))
}

func TestFFmpegSample_NoFrames(t *testing.T) {
	s := NewFFmpegSampler("", 1)
	s.run = (&fakeRunner{}).run

	_, err := s.Sample(context.Background(), "/v/empty.mp4", t.TempDir())
	assert.Error(t, err)
}

func TestFFmpegSample_ToolError(t *testing.T) {
	s := NewFFmpegSampler("", 1)
	s.run = (&fakeRunner{effect: func([]string) error { return errors.New("exit status 183") }}).run

	_, err := s.Sample(context.Background(), "/v/bad.mp4", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 183")
}

type stubAcquirer struct {
	dir   string
	names []string
	err   error
}

func (s *stubAcquirer) Acquire(ctx context.Context, source string, max int) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []string
	for _, n := range s.names {
		p := filepath.Join(s.dir, n)
		os.WriteFile(p, []byte(n), 0644)
		out = append(out, p)
	}
	return out, nil
}

type memFrames struct {
	paths   []string
	sources []string
}

func (m *memFrames) AddFiles(paths []string, kind models.SourceKind, sourceInfo string) (int, error) {
	if kind != models.SourceFrame {
		return 0, fmt.Errorf("unexpected kind %s", kind)
	}
	m.paths = append(m.paths, paths...)
	m.sources = append(m.sources, sourceInfo)
	return len(paths), nil
}

func TestProcessor_SkipsProcessedVideos(t *testing.T) {
	root := t.TempDir()
	videos := filepath.Join(root, "videos")
	frames := filepath.Join(root, "frames")
	require.NoError(t, os.MkdirAll(videos, 0755))
	touch(t, filepath.Join(videos, "done.mp4"))
	touch(t, filepath.Join(frames, "done_frame_000001.jpg"))

	sampler := NewFFmpegSampler("", 1)
	fake := &fakeRunner{effect: frameWriter(t, 2)}
	sampler.run = fake.run
	rec := &memFrames{}

	p := NewProcessor(&stubAcquirer{dir: videos, names: []string{"fresh.mp4"}}, sampler, rec, videos, frames)
	report, err := p.Run(context.Background(), "q", 1)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Downloaded)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, report.Frames)
	assert.Equal(t, 2, report.Recorded)
	assert.Len(t, fake.calls, 1)
	assert.Equal(t, []string{filepath.Join(videos, "fresh.mp4")}, rec.sources)
}

func TestProcessor_AcquireError(t *testing.T) {
	p := NewProcessor(&stubAcquirer{err: errors.New("no network")}, NewFFmpegSampler("", 1), nil, t.TempDir(), t.TempDir())

	_, err := p.Run(context.Background(), "q", 1)
	assert.Error(t, err)
}

func TestProcessor_SampleFailureIsCounted(t *testing.T) {
	videos := t.TempDir()
	sampler := NewFFmpegSampler("", 1)
	sampler.run = (&fakeRunner{effect: func([]string) error { return errors.New("corrupt") }}).run

	p := NewProcessor(&stubAcquirer{dir: videos, names: []string{"a.mp4", "b.mkv"}}, sampler, nil, videos, t.TempDir())
	report, err := p.Run(context.Background(), "q", 2)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed)
	assert.Zero(t, report.Processed)
}
