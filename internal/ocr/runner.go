package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// NewExecRunner returns a Runner that executes binaries on the host.
func NewExecRunner(log logrus.FieldLogger) Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return execRunner{log: log}
}

type execRunner struct {
	log logrus.FieldLogger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	entry := r.log.WithFields(logrus.Fields{
		"cmd":         name,
		"args":        strings.Join(args, " "),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if err != nil {
		entry.WithError(err).WithField("stderr", truncate(errb.String(), 8<<10)).Error("ocr.execRunner: exec failed")
	} else {
		entry.WithField("stdout_bytes", out.Len()).Debug("ocr.execRunner: exec ok")
	}

	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
