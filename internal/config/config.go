package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"

	"github.com/romdo/go-mergebounce"
)

const DefaultPath = "mergebounce.toml"

type File struct {
	WaitMs       int64  `toml:"wait_ms" validate:"gte=0"`
	MaxWaitMs    *int64 `toml:"max_wait_ms" validate:"omitempty,gte=0"`
	ConcatArrays bool   `toml:"concat_arrays"`
	DedupeArrays bool   `toml:"dedupe_arrays"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Read loads and validates the config file at path. A missing file at
// DefaultPath is not an error, and yields the default config.
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && path == DefaultPath {
		return &File{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	f, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, multierror.Prefix(err, path+":")
	}

	return f, nil
}

// Parse decodes and validates a TOML config. Unknown keys are rejected.
func Parse(r io.Reader) (*File, error) {
	f := &File{}
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(f); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}

	return f, nil
}

// Validate returns every validation failure of f as one error.
func (f *File) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	var result *multierror.Error
	for _, fe := range fieldErrs {
		result = multierror.Append(result, fmt.Errorf(
			"%s: must be %s %s, got %v", fe.Field(), fe.Tag(), fe.Param(), fe.Value(),
		))
	}

	return result.ErrorOrNil()
}

func (f *File) Mergebounce() *mergebounce.Config {
	c := &mergebounce.Config{
		Wait:         time.Duration(f.WaitMs) * time.Millisecond,
		ConcatArrays: f.ConcatArrays,
		DedupeArrays: f.DedupeArrays,
	}

	if f.MaxWaitMs != nil {
		maxWait := time.Duration(*f.MaxWaitMs) * time.Millisecond
		c.MaxWait = &maxWait
	}

	return c
}
