package cmds

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"

	"github.com/romdo/go-mergebounce"
)

type configKey struct{}

// WithConfig returns a copy of ctx carrying conf for the command actions.
func WithConfig(ctx context.Context, conf *mergebounce.Config) context.Context {
	return context.WithValue(ctx, configKey{}, conf)
}

func GetConfigFromCliContext(c *cli.Context) *mergebounce.Config {
	conf, _ := c.Context.Value(configKey{}).(*mergebounce.Config)
	if conf == nil {
		return &mergebounce.Config{}
	}

	return conf
}

// jsonLines writes one JSON document per line. Invocations can overlap, so
// writes are serialized.
type jsonLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newJSONLines(w io.Writer) *jsonLines {
	return &jsonLines{enc: json.NewEncoder(w)}
}

func (j *jsonLines) write(v any) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.enc.Encode(v)
}

// emitter returns a Func writing its first argument to out.
func emitter(out *jsonLines) mergebounce.Func[int] {
	var mu sync.Mutex
	var n int

	return func(_ context.Context, args []any) (int, error) {
		mu.Lock()
		n++
		count := n
		mu.Unlock()

		if len(args) == 0 {
			return count, nil
		}

		return count, out.write(args[0])
	}
}

// finish invokes any pending call and waits for every running invocation, so
// all output and errors are in before the command returns. It returns the
// number of invocations.
func finish(m *mergebounce.Mergebouncer[int], errs *errorCollector) int {
	_, err := m.Flush()
	errs.add(err)
	m.Wait()

	n, _ := m.Last()

	return n
}

// errorCollector gathers errors from concurrent sources.
type errorCollector struct {
	mu     sync.Mutex
	result *multierror.Error
}

func (e *errorCollector) add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.result = multierror.Append(e.result, err)
}

func (e *errorCollector) err() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.result.ErrorOrNil()
}
