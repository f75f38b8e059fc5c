package coherence

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ghmbegerez/converge/pkg/models"
)

// RunQuestion executes one question's check command (via a shell, same
// as original_source/coherence.py's subprocess.run(..., shell=True))
// under a hard timeout, parses the last line of stdout as a float, and
// evaluates the assertion against it and the given baseline.
func RunQuestion(ctx context.Context, q models.CoherenceQuestion, workdir string, baseline *float64) models.CoherenceResult {
	timeoutCtx, cancel := context.WithTimeout(ctx, QuestionTimeoutSeconds*time.Second)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, "sh", "-c", q.Check)
	if workdir != "" {
		cmd.Dir = workdir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if timeoutCtx.Err() == context.DeadlineExceeded {
		return failResult(q, baseline, "Command timed out")
	}
	if err != nil {
		msg := stderr.String()
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return failResult(q, baseline, fmt.Sprintf("Command failed: %v: %s", err, msg))
	}

	value, perr := parseNumeric(stdout.String())
	if perr != nil {
		return failResult(q, baseline, perr.Error())
	}

	passed := evaluateAssertion(q.Assertion, value, baseline)
	verdict := models.CoherenceFail
	if passed {
		verdict = models.CoherencePass
	}
	return models.CoherenceResult{
		QuestionID: q.ID,
		Question:   q.Question,
		Verdict:    verdict,
		Value:      value,
		Baseline:   baseline,
		Assertion:  q.Assertion,
	}
}

func failResult(q models.CoherenceQuestion, baseline *float64, errMsg string) models.CoherenceResult {
	return models.CoherenceResult{
		QuestionID: q.ID,
		Question:   q.Question,
		Verdict:    models.CoherenceFail,
		Value:      0.0,
		Baseline:   baseline,
		Assertion:  q.Assertion,
		Error:      &errMsg,
	}
}

// parseNumeric extracts the numeric result from a check's stdout: the
// last non-empty line, parsed as a float (spec.md §4.5 "parse last
// line of stdout as a float").
func parseNumeric(raw string) (float64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0.0, nil
	}
	lines := strings.Split(trimmed, "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	v, err := strconv.ParseFloat(last, 64)
	if err != nil {
		return 0, fmt.Errorf("non-numeric check output %q: %w", last, err)
	}
	return v, nil
}
