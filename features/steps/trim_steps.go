//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	appvideo "tourney-media/application/video"
	"tourney-media/cmd"
	"tourney-media/domain/video"

	"github.com/cucumber/godog"
)

// trimContext holds test state for trim scenarios
type trimContext struct {
	dir         string
	sourcePath  string
	outputPath  string
	interval    string
	scanner     *mockScanner
	cache       *memoryCache
	keyframes   *appvideo.KeyframeService
	cutter      *mockCutter
	fileChecker *mockFileChecker
	output      *bytes.Buffer
	err         error
}

func InitializeTrimScenario(ctx *godog.ScenarioContext) {
	t := &trimContext{}

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		checker := newMockFileChecker()
		*t = trimContext{
			scanner:     &mockScanner{},
			cache:       newMemoryCache(),
			cutter:      newMockCutter(checker),
			fileChecker: checker,
			output:      &bytes.Buffer{},
		}
		t.keyframes = appvideo.NewKeyframeService(t.scanner, t.cache, appvideo.WithKeyframeLogger(discardLogger()))

		dir, err := tempDir("trim-test-*")
		if err != nil {
			return c, err
		}
		t.dir = dir
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		os.RemoveAll(t.dir)
		return c, nil
	})

	ctx.Step(`^a recording at "([^"]*)" with keyframes at ([0-9., ]+) seconds$`, t.aRecordingWithKeyframes)
	ctx.Step(`^no recording exists at "([^"]*)"$`, t.noRecordingExistsAt)
	ctx.Step(`^the keyframes of "([^"]*)" are already cached$`, t.theKeyframesAreAlreadyCached)
	ctx.Step(`^the output file is "([^"]*)"$`, t.theOutputFileIs)
	ctx.Step(`^the output file "([^"]*)" already exists$`, t.theOutputFileAlreadyExists)
	ctx.Step(`^a fixed keyframe interval of "([^"]*)"$`, t.aFixedKeyframeIntervalOf)
	ctx.Step(`^I trim from "([^"]*)" to "([^"]*)"$`, t.iTrimFromTo)
	ctx.Step(`^I trim from "([^"]*)" to "([^"]*)" into "([^"]*)"$`, t.iTrimFromToInto)
	ctx.Step(`^the clip should be cut from "([^"]*)" to "([^"]*)"$`, t.theClipShouldBeCutFromTo)
	ctx.Step(`^the recording should have been scanned (\d+) times?$`, t.theRecordingShouldHaveBeenScanned)
	ctx.Step(`^the trim should fail with "([^"]*)"$`, t.theTrimShouldFailWith)
	ctx.Step(`^the trim output should contain "([^"]*)"$`, t.theTrimOutputShouldContain)
}

func (t *trimContext) aRecordingWithKeyframes(path, list string) error {
	keyframes, err := parseKeyframes(list)
	if err != nil {
		return err
	}
	t.sourcePath = path
	t.scanner.keyframes = keyframes
	t.fileChecker.set(path, true)
	return nil
}

func (t *trimContext) noRecordingExistsAt(path string) error {
	t.sourcePath = path
	t.fileChecker.set(path, false)
	return nil
}

func (t *trimContext) theKeyframesAreAlreadyCached(path string) error {
	return t.cache.Store(path, t.scanner.keyframes)
}

func (t *trimContext) theOutputFileIs(name string) error {
	t.outputPath = filepath.Join(t.dir, name)
	return nil
}

func (t *trimContext) theOutputFileAlreadyExists(name string) error {
	t.outputPath = filepath.Join(t.dir, name)
	t.fileChecker.set(t.outputPath, true)
	return nil
}

func (t *trimContext) aFixedKeyframeIntervalOf(interval string) error {
	t.interval = interval
	return nil
}

func (t *trimContext) iTrimFromTo(start, end string) error {
	t.err = cmd.RunTrimWithDependencies(
		context.Background(),
		t.keyframes,
		t.cutter,
		t.fileChecker,
		cmd.TrimCommandInput{
			SourcePath: t.sourcePath,
			StartTime:  start,
			EndTime:    end,
			OutputPath: t.outputPath,
			Interval:   t.interval,
		},
		t.output,
	)
	return nil
}

func (t *trimContext) iTrimFromToInto(start, end, name string) error {
	t.outputPath = filepath.Join(t.dir, name)
	return t.iTrimFromTo(start, end)
}

func (t *trimContext) theClipShouldBeCutFromTo(start, end string) error {
	if t.err != nil {
		return fmt.Errorf("unexpected error: %v", t.err)
	}
	got, ok := t.cutter.cuts[t.outputPath]
	if !ok {
		return fmt.Errorf("no cut was written to %s", t.outputPath)
	}
	want := fmt.Sprintf("%s-%s", start, end)
	if got.String() != want {
		return fmt.Errorf("cut range = %s, want %s", got, want)
	}
	return nil
}

func (t *trimContext) theRecordingShouldHaveBeenScanned(times int) error {
	if t.scanner.scans != times {
		return fmt.Errorf("scanned %d times, want %d", t.scanner.scans, times)
	}
	return nil
}

func (t *trimContext) theTrimShouldFailWith(message string) error {
	if t.err == nil {
		return fmt.Errorf("expected an error containing %q", message)
	}
	if !strings.Contains(t.err.Error(), message) {
		return fmt.Errorf("error %q does not contain %q", t.err, message)
	}
	return nil
}

func (t *trimContext) theTrimOutputShouldContain(text string) error {
	if !strings.Contains(t.output.String(), text) {
		return fmt.Errorf("output does not contain %q:\n%s", text, t.output.String())
	}
	return nil
}

var _ video.Cutter = (*mockCutter)(nil)
