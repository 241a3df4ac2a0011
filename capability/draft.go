package capability

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"

	"github.com/taglme/console/errors"
)

// draftFile is the on-disk draft layout. YAML is a superset of JSON, so both parse.
type draftFile struct {
	Repeat any `yaml:"repeat"`
	Steps  []struct {
		Command any `yaml:"command"`
		Params  any `yaml:"params"`
	} `yaml:"steps"`
}

// ParseDraft decodes a YAML or JSON job draft.
// A missing repeat reads as 1. Non-string commands are converted to strings.
func ParseDraft(data []byte) (Draft, error) {
	var f draftFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Draft{}, errors.Wrap(err, "failed to parse job draft")
	}

	repeat, err := repeatValue(f.Repeat)
	if err != nil {
		return Draft{}, err
	}

	draft := Draft{Repeat: repeat, Steps: make([]Step, 0, len(f.Steps))}
	for i, s := range f.Steps {
		cmd := commandString(s.Command)
		if cmd == "" {
			return Draft{}, errors.Newf("step %d has no command", i+1)
		}
		draft.Steps = append(draft.Steps, Step{Command: cmd, Params: s.Params})
	}
	return draft, nil
}

func repeatValue(v any) (float64, error) {
	switch r := v.(type) {
	case nil:
		return 1, nil
	case int:
		return float64(r), nil
	case int64:
		return float64(r), nil
	case uint64:
		return float64(r), nil
	case float64:
		return r, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(r), 64)
		if err != nil {
			return 0, errors.Newf("repeat must be a number, got %q", r)
		}
		return f, nil
	default:
		return 0, errors.Newf("repeat must be a number, got %T", v)
	}
}

func commandString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(c)
	case float64:
		if c == math.Trunc(c) && !math.IsInf(c, 0) {
			return strconv.FormatInt(int64(c), 10)
		}
		return strconv.FormatFloat(c, 'g', -1, 64)
	default:
		return fmt.Sprint(c)
	}
}

// ParseStep parses a shell-quoted step such as `write_ndef text="hello world" lock=true`.
// Every argument after the command must be key=value. Values are read as bool,
// integer or float when they parse as one, and as strings otherwise.
func ParseStep(line string) (Step, error) {
	args, err := shellquote.Split(line)
	if err != nil {
		return Step{}, errors.Wrapf(err, "failed to parse step %q", line)
	}
	if len(args) == 0 {
		return Step{}, errors.New("empty step")
	}

	params := make(map[string]any, len(args)-1)
	for _, arg := range args[1:] {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return Step{}, errors.WithHint(
				errors.Newf("step parameter %q is not key=value", arg),
				"quote values containing spaces, e.g. text=\"hello world\"")
		}
		params[key] = coerce(value)
	}
	return Step{Command: args[0], Params: params}, nil
}

func coerce(v string) any {
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	return v
}
