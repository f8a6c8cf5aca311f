package mergebounce

import (
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var maxRetries = flag.Int("max-retries", 0, "Maximum number of retries")

// Due to the timing-based nature of the real clock tests, we want to support
// automatically retrying the tests a few times to avoid flakiness.
func TestMain(m *testing.M) {
	flag.Parse()

	code := m.Run()

	for i := 0; code != 0 && i < *maxRetries; i++ {
		fmt.Fprintf(os.Stderr,
			"===\n=== WARN  Tests failed, retrying (%d/%d)...\n===\n",
			i+1, *maxRetries,
		)
		code = m.Run()
	}

	os.Exit(code)
}

func TestNew_realClock(t *testing.T) {
	t.Parallel()

	t.Run("merges nested arrays of mappings", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		m, err := New(rec.fn, 10*time.Millisecond)
		require.NoError(t, err)

		_, _ = m.Call(map[string]any{"a": []any{
			map[string]any{"b": 2}, map[string]any{"d": 4},
		}})
		_, _ = m.Call(map[string]any{"a": []any{
			map[string]any{"c": 3}, map[string]any{"e": 5},
		}})

		time.Sleep(15 * time.Millisecond)
		assert.Eventually(t, func() bool { return rec.count() > 0 },
			time.Second, time.Millisecond,
		)

		require.Equal(t, 1, rec.count())
		assert.Equal(t, []any{map[string]any{"a": []any{
			map[string]any{"b": 2, "c": 3},
			map[string]any{"d": 4, "e": 5},
		}}}, rec.args(0))
	})

	t.Run("max wait with two immediate calls", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		m, err := New(rec.fn, 32*time.Millisecond,
			MaxWait(64*time.Millisecond),
		)
		require.NoError(t, err)

		_, _ = m.Call()
		_, _ = m.Call()
		assert.Equal(t, 0, rec.count())

		time.Sleep(128 * time.Millisecond)
		assert.Equal(t, 1, rec.count())
	})

	t.Run("continuous calls still invoke within max wait", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		m, err := New(rec.fn, 50*time.Millisecond,
			MaxWait(100*time.Millisecond),
		)
		require.NoError(t, err)

		// Calls every 10ms never leave a 50ms quiet period.
		deadline := time.Now().Add(350 * time.Millisecond)
		for time.Now().Before(deadline) {
			_, err := m.Call(map[string]any{"t": time.Now().UnixMilli()})
			require.NoError(t, err)
			time.Sleep(10 * time.Millisecond)
		}

		assert.GreaterOrEqual(t, rec.count(), 2)
		m.Cancel()
	})
}
