// Package report renders session results.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/formctl/cmd/formctl/internal/session"
	"github.com/go-drift/formctl/pkg/form"
)

// Printer writes reports, coloured when enabled.
type Printer struct {
	w     io.Writer
	ok    *color.Color
	bad   *color.Color
	dim   *color.Color
	title *color.Color
}

// NewPrinter returns a printer for w. mode is "auto", "always" or "never";
// auto enables colour when w is a terminal.
func NewPrinter(w io.Writer, mode string) *Printer {
	p := &Printer{
		w:     w,
		ok:    color.New(color.FgGreen),
		bad:   color.New(color.FgRed),
		dim:   color.New(color.Faint),
		title: color.New(color.Bold),
	}
	enable := mode == "always"
	if mode == "auto" || mode == "" {
		enable = IsTerminal(w)
	}
	for _, c := range []*color.Color{p.ok, p.bad, p.dim, p.title} {
		if enable {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Text writes a human readable report.
func (p *Printer) Text(res *session.Result) error {
	name := res.Name
	if name == "" {
		name = "form"
	}
	fmt.Fprintf(p.w, "%s %s\n", p.title.Sprint(name), p.dim.Sprintf("(%s)", res.ID))

	if len(res.Steps) > 0 {
		fmt.Fprintln(p.w)
		fmt.Fprintln(p.w, p.title.Sprint("Steps:"))
		for _, s := range res.Steps {
			fmt.Fprintf(p.w, "  %3d %-12s %-20s %s\n", s.Index, s.Action, s.Name, p.outcome(s))
		}
	}

	st := res.State
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.title.Sprint("State:"))
	fmt.Fprintf(p.w, "  dirty=%t valid=%t submitted=%t successful=%t submits=%d disabled=%t\n",
		st.IsDirty, st.IsValid, st.IsSubmitted, st.IsSubmitSuccessful, st.SubmitCount, st.Disabled)
	if names := st.DirtyFields.Names(); len(names) > 0 {
		fmt.Fprintf(p.w, "  dirty fields:   %s\n", strings.Join(names, ", "))
	}
	if names := st.TouchedFields.Names(); len(names) > 0 {
		fmt.Fprintf(p.w, "  touched fields: %s\n", strings.Join(names, ", "))
	}

	if len(st.Errors) > 0 {
		fmt.Fprintln(p.w)
		fmt.Fprintln(p.w, p.title.Sprint("Errors:"))
		for _, n := range st.Errors.Names() {
			e := st.Errors[n]
			line := fmt.Sprintf("  %-20s %-10s %s", n, e.Type, e.Message)
			if id := session.HandleID(e.Ref); id != "" {
				line += p.dim.Sprintf("  ref=%s", id[:8])
			}
			fmt.Fprintln(p.w, p.bad.Sprint(line))
		}
	}

	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.title.Sprint("Values:"))
	out, err := yaml.Marshal(res.Values)
	if err != nil {
		return fmt.Errorf("encode values: %w", err)
	}
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		fmt.Fprintf(p.w, "  %s\n", line)
	}
	return nil
}

func (p *Printer) outcome(s session.StepResult) string {
	switch {
	case s.Err != "":
		return p.bad.Sprintf("error: %s", s.Err)
	case s.Valid != nil && *s.Valid:
		return p.ok.Sprint("valid")
	case s.Valid != nil:
		return p.bad.Sprintf("invalid (%d errors)", s.Errors)
	case s.Errors > 0:
		return p.dim.Sprintf("%d errors", s.Errors)
	}
	return p.ok.Sprint("ok")
}

// Metrics writes the gathered metrics sorted by name.
func (p *Printer) Metrics(res *session.Result) {
	names := make([]string, 0, len(res.Metrics))
	for n := range res.Metrics {
		names = append(names, n)
	}
	sort.Strings(names)
	fmt.Fprintln(p.w, p.title.Sprint("Metrics:"))
	for _, n := range names {
		fmt.Fprintf(p.w, "  %-60s %g\n", n, res.Metrics[n])
	}
}

// Dump writes a deep dump of the result.
func Dump(w io.Writer, res *session.Result) {
	cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
	cfg.Fdump(w, res)
}

// JSON writes the result as indented JSON.
func JSON(w io.Writer, res *session.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toJSON(res))
}

type jsonResult struct {
	ID            string               `json:"id"`
	Name          string               `json:"name,omitempty"`
	Steps         []session.StepResult `json:"steps"`
	Submissions   []jsonSubmission     `json:"submissions,omitempty"`
	State         jsonState            `json:"state"`
	Values        map[string]any       `json:"values"`
	Defaults      map[string]any       `json:"defaults"`
	Notifications int                  `json:"notifications"`
	Metrics       map[string]float64   `json:"metrics,omitempty"`
	Errors        map[string]jsonError `json:"errors,omitempty"`
	Refs          map[string][]string  `json:"refs,omitempty"`
}

type jsonSubmission struct {
	Valid  bool                 `json:"valid"`
	Values map[string]any       `json:"values,omitempty"`
	Errors map[string]jsonError `json:"errors,omitempty"`
}

type jsonState struct {
	IsDirty            bool     `json:"isDirty"`
	IsValid            bool     `json:"isValid"`
	IsSubmitted        bool     `json:"isSubmitted"`
	IsSubmitSuccessful bool     `json:"isSubmitSuccessful"`
	SubmitCount        int      `json:"submitCount"`
	Disabled           bool     `json:"disabled"`
	DirtyFields        []string `json:"dirtyFields"`
	TouchedFields      []string `json:"touchedFields"`
}

type jsonError struct {
	Type    string              `json:"type"`
	Message string              `json:"message"`
	Types   map[string][]string `json:"types,omitempty"`
	Ref     string              `json:"ref,omitempty"`
}

func toJSON(res *session.Result) jsonResult {
	st := res.State
	out := jsonResult{
		ID:            res.ID,
		Name:          res.Name,
		Steps:         res.Steps,
		Values:        res.Values,
		Defaults:      res.Defaults,
		Metrics:       res.Metrics,
		Errors:        jsonErrors(st.Errors),
		Refs:          make(map[string][]string),
		Notifications: res.Notifications,
		State: jsonState{
			IsDirty:            st.IsDirty,
			IsValid:            st.IsValid,
			IsSubmitted:        st.IsSubmitted,
			IsSubmitSuccessful: st.IsSubmitSuccessful,
			SubmitCount:        st.SubmitCount,
			Disabled:           st.Disabled,
			DirtyFields:        st.DirtyFields.Names(),
			TouchedFields:      st.TouchedFields.Names(),
		},
	}
	for _, s := range res.Submissions {
		out.Submissions = append(out.Submissions, jsonSubmission{
			Valid:  s.Valid,
			Values: s.Values,
			Errors: jsonErrors(s.Errors),
		})
	}
	for name, hs := range res.Handles {
		for _, h := range hs {
			out.Refs[name] = append(out.Refs[name], h.ID)
		}
	}
	return out
}

func jsonErrors(errs form.Errors) map[string]jsonError {
	if len(errs) == 0 {
		return nil
	}
	out := make(map[string]jsonError, len(errs))
	for name, e := range errs {
		out[name] = jsonError{Type: e.Type, Message: e.Message, Types: e.Types, Ref: session.HandleID(e.Ref)}
	}
	return out
}
