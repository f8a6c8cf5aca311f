package cmds

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v2"

	"github.com/romdo/go-mergebounce"
)

// Watch watches the given paths, and calls the mergebouncer with
// {path: content} for every JSON file created or written. Each invocation
// writes the merged snapshot as one JSON line. It runs until the context is
// canceled, then flushes.
func Watch(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return errors.New("watch: at least one path is required")
	}

	conf := GetConfigFromCliContext(c)
	out := newJSONLines(c.App.Writer)
	errs := &errorCollector{}

	m, err := mergebounce.NewFromConfig(conf, emitter(out),
		mergebounce.OnError(errs.add),
	)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for _, path := range paths {
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		slog.Info("Watching path", "path", path)
	}

	watchErrs := watcher.Errors
	for {
		select {
		case <-c.Context.Done():
			finish(m, errs)

			return errs.err()
		case event, ok := <-watcher.Events:
			if !ok {
				finish(m, errs)

				return errs.err()
			}

			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if filepath.Ext(event.Name) != ".json" {
				continue
			}

			v, err := readJSON(event.Name)
			if err != nil {
				slog.Warn("Skipping file", "path", event.Name, "error", err)

				continue
			}

			slog.Debug("Merging file", "path", event.Name, "op", event.Op.String())

			if _, err := m.CallContext(c.Context, map[string]any{event.Name: v}); err != nil {
				errs.add(err)
			}
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil

				continue
			}
			slog.Error("Watcher error", "error", err)
			errs.add(err)
		}
	}
}

func readJSON(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return v, nil
}
