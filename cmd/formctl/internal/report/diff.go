package report

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"gopkg.in/yaml.v3"
)

// Diff renders a line diff between two value trees encoded as YAML.
// Removed lines start with "-", added lines with "+" and unchanged lines
// with a space. Nothing is written when the trees encode identically, and
// changed is false.
func (p *Printer) Diff(from, to map[string]any) (changed bool, err error) {
	a, err := encodeYAML(from)
	if err != nil {
		return false, err
	}
	b, err := encodeYAML(to)
	if err != nil {
		return false, err
	}

	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	for _, d := range diffs {
		if d.Type != diffmatchpatch.DiffEqual {
			changed = true
			break
		}
	}
	if !changed {
		return false, nil
	}

	for _, d := range diffs {
		for _, line := range splitLines(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffDelete:
				fmt.Fprintln(p.w, p.bad.Sprint("-"+line))
			case diffmatchpatch.DiffInsert:
				fmt.Fprintln(p.w, p.ok.Sprint("+"+line))
			default:
				fmt.Fprintln(p.w, " "+line)
			}
		}
	}
	return changed, nil
}

func encodeYAML(v map[string]any) (string, error) {
	if len(v) == 0 {
		return "", nil
	}
	out, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode values: %w", err)
	}
	return string(out), nil
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
