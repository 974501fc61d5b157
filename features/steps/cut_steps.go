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
	"tourney-media/application/vod"
	"tourney-media/cmd"

	"github.com/cucumber/godog"
)

// cutContext holds test state for batch cut scenarios
type cutContext struct {
	sheet       *vod.CutSheet
	scanner     *mockScanner
	cutter      *mockCutter
	fileChecker *mockFileChecker
	output      *bytes.Buffer
	err         error
}

func InitializeCutScenario(ctx *godog.ScenarioContext) {
	c := &cutContext{}

	ctx.Before(func(gctx context.Context, sc *godog.Scenario) (context.Context, error) {
		checker := newMockFileChecker()
		*c = cutContext{
			scanner:     &mockScanner{},
			cutter:      newMockCutter(checker),
			fileChecker: checker,
			output:      &bytes.Buffer{},
		}
		return gctx, nil
	})

	ctx.After(func(gctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if c.sheet != nil && c.sheet.OutputDirectory != "" {
			os.RemoveAll(c.sheet.OutputDirectory)
		}
		return gctx, nil
	})

	ctx.Step(`^a cut sheet for "([^"]*)" with keyframes at ([0-9., ]+) seconds and segments:$`, c.aCutSheetWithSegments)
	ctx.Step(`^the cut sheet writes to a temporary directory$`, c.theCutSheetWritesToATemporaryDirectory)
	ctx.Step(`^the clip "([^"]*)" already exists$`, c.theClipAlreadyExists)
	ctx.Step(`^cutting "([^"]*)" fails$`, c.cuttingFails)
	ctx.Step(`^I run the cut sheet$`, c.iRunTheCutSheet)
	ctx.Step(`^the clip "([^"]*)" should be cut from "([^"]*)" to "([^"]*)"$`, c.theClipShouldBeCutFromTo)
	ctx.Step(`^the clip "([^"]*)" should not be cut$`, c.theClipShouldNotBeCut)
	ctx.Step(`^(\d+) clips should have been cut$`, c.clipsShouldHaveBeenCut)
	ctx.Step(`^the cut should fail with "([^"]*)"$`, c.theCutShouldFailWith)
	ctx.Step(`^the cut should succeed$`, c.theCutShouldSucceed)
	ctx.Step(`^the cut output should contain "([^"]*)"$`, c.theCutOutputShouldContain)
}

func (c *cutContext) aCutSheetWithSegments(source, list string, table *godog.Table) error {
	keyframes, err := parseKeyframes(list)
	if err != nil {
		return err
	}
	c.scanner.keyframes = keyframes
	c.fileChecker.set(source, true)

	c.sheet = &vod.CutSheet{Source: source}
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		if len(row.Cells) != 3 {
			return fmt.Errorf("segment rows need name, start and end")
		}
		c.sheet.Segments = append(c.sheet.Segments, vod.Segment{
			Name:  row.Cells[0].Value,
			Start: row.Cells[1].Value,
			End:   row.Cells[2].Value,
		})
	}
	return nil
}

func (c *cutContext) theCutSheetWritesToATemporaryDirectory() error {
	dir, err := tempDir("cut-test-*")
	if err != nil {
		return err
	}
	c.sheet.OutputDirectory = dir
	return nil
}

func (c *cutContext) clipPath(name string) string {
	return filepath.Join(c.sheet.OutputDir(), name)
}

func (c *cutContext) theClipAlreadyExists(name string) error {
	c.fileChecker.set(c.clipPath(name), true)
	return nil
}

func (c *cutContext) cuttingFails(name string) error {
	c.cutter.failFor[c.clipPath(name)] = true
	return nil
}

func (c *cutContext) iRunTheCutSheet() error {
	keyframes := appvideo.NewKeyframeService(c.scanner, newMemoryCache(), appvideo.WithKeyframeLogger(discardLogger()))
	c.err = cmd.RunCutWithDependencies(
		context.Background(),
		keyframes,
		c.cutter,
		c.fileChecker,
		nil,
		c.sheet,
		2,
		c.output,
	)
	return nil
}

func (c *cutContext) theClipShouldBeCutFromTo(name, start, end string) error {
	got, ok := c.cutter.cuts[c.clipPath(name)]
	if !ok {
		return fmt.Errorf("clip %s was not cut", name)
	}
	if want := start + "-" + end; got.String() != want {
		return fmt.Errorf("clip %s range = %s, want %s", name, got, want)
	}
	return nil
}

func (c *cutContext) theClipShouldNotBeCut(name string) error {
	if _, ok := c.cutter.cuts[c.clipPath(name)]; ok {
		return fmt.Errorf("clip %s was cut", name)
	}
	return nil
}

func (c *cutContext) clipsShouldHaveBeenCut(n int) error {
	if got := c.cutter.count(); got != n {
		return fmt.Errorf("%d clips cut, want %d", got, n)
	}
	return nil
}

func (c *cutContext) theCutShouldFailWith(message string) error {
	if c.err == nil || !strings.Contains(c.err.Error(), message) {
		return fmt.Errorf("error = %v, want containing %q", c.err, message)
	}
	return nil
}

func (c *cutContext) theCutShouldSucceed() error {
	if c.err != nil {
		return fmt.Errorf("unexpected error: %v", c.err)
	}
	return nil
}

func (c *cutContext) theCutOutputShouldContain(text string) error {
	if !strings.Contains(c.output.String(), text) {
		return fmt.Errorf("output does not contain %q:\n%s", text, c.output.String())
	}
	return nil
}
