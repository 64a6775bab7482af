package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/bartekus/vibe/internal/guard"
	"github.com/bartekus/vibe/internal/runner"
	"github.com/bartekus/vibe/internal/sandbox"
)

// printer renders run logs and summaries for a terminal.
type printer struct {
	out io.Writer
	err io.Writer
}

func newPrinter(out, errOut io.Writer) *printer {
	switch strings.ToLower(os.Getenv("VIBE_COLOR")) {
	case "always", "force":
		color.NoColor = false
	case "never", "off":
		color.NoColor = true
	}
	if os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}
	return &printer{out: out, err: errOut}
}

var (
	stepColor   = color.New(color.FgCyan, color.Bold)
	cmdColor    = color.New(color.Faint)
	stderrColor = color.New(color.FgYellow)
	errorColor  = color.New(color.FgRed, color.Bold)
	infoColor   = color.New(color.FgBlue)
	okColor     = color.New(color.FgGreen, color.Bold)
	warnColor   = color.New(color.FgYellow, color.Bold)
)

// Log prints one entry. Output chunks are written verbatim.
func (p *printer) Log(e sandbox.LogEntry) {
	switch e.Type {
	case sandbox.LogStep:
		stepColor.Fprintln(p.out, e.Message)
	case sandbox.LogCmd:
		cmdColor.Fprintln(p.out, e.Message)
	case sandbox.LogStdout:
		fmt.Fprint(p.out, e.Message)
	case sandbox.LogStderr:
		stderrColor.Fprint(p.out, e.Message)
	case sandbox.LogError:
		errorColor.Fprintln(p.out, e.Message)
	case sandbox.LogInfo:
		infoColor.Fprintln(p.out, e.Message)
	default:
		cmdColor.Fprintln(p.out, e.Message)
	}
}

func (p *printer) Summary(r *runner.RunReport) {
	attempted := len(r.Results)
	switch {
	case r.Cancelled:
		errorColor.Fprintf(p.out, "✗ Run cancelled after %d/%d steps\n", attempted, r.TotalSteps)
	case r.Success && r.Complete():
		okColor.Fprintf(p.out, "✓ Run passed (%d/%d steps)\n", attempted, r.TotalSteps)
	case r.StoppedAt != "":
		errorColor.Fprintf(p.out, "✗ Run stopped at %s (%d/%d steps)\n", r.StoppedAt, attempted, r.TotalSteps)
	default:
		errorColor.Fprintf(p.out, "✗ Run failed: %s\n", strings.Join(r.Failed(), ", "))
	}
}

func (p *printer) Findings(findings []guard.Finding) {
	for _, f := range findings {
		warnColor.Fprintf(p.err, "⚠ %s\n", f.Error())
	}
}

func (p *printer) Success(msg string) {
	okColor.Fprintf(p.out, "✓ %s\n", msg)
}
