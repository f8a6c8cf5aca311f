package cmds

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/romdo/go-mergebounce"
)

const maxLineSize = 16 * 1024 * 1024

// Stream reads one JSON value per line from the app's reader, and writes the
// merged value of every burst of lines as one JSON line to the app's writer.
func Stream(c *cli.Context) error {
	conf := GetConfigFromCliContext(c)
	out := newJSONLines(c.App.Writer)
	errs := &errorCollector{}

	m, err := mergebounce.NewFromConfig(conf, emitter(out),
		mergebounce.OnError(errs.add),
	)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(c.App.Reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++

		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		var v any
		if err := json.Unmarshal(text, &v); err != nil {
			errs.add(fmt.Errorf("line %d: %w", line, err))

			continue
		}

		slog.Debug("Merging line", "line", line)

		if _, err := m.CallContext(c.Context, v); err != nil {
			errs.add(err)
		}

		if c.Context.Err() != nil {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		errs.add(fmt.Errorf("read input: %w", err))
	}

	n := finish(m, errs)

	slog.Info("Stream finished", "lines", line, "invocations", n)

	return errs.err()
}
