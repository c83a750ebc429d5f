package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/requerio/internal/dom"
	"github.com/roach88/requerio/internal/ir"
)

// schema constrains the manifest shape before Compile inspects it.
const schema = `
#Manifest: {
	name?: string
	document: {
		html?: string
		file?: string
	}
	organisms: [...string]
	layout?: [string]: {
		rect?: {
			top?:    number
			right?:  number
			bottom?: number
			left?:   number
			width?:  number
			height?: number
			x?:      number
			y?:      number
		}
		metrics?: [string]: number
	}
	reducer?: {
		script?:  string
		file?:    string
		timeout?: string
	}
	actions?: [...{
		organism: string
		method:   string
		args?:    _
		member?:  int | [...int]
	}]
}
`

// Load reads a manifest from a .cue file or from a directory holding one
// CUE package.
func Load(path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}

	ctx := cuecontext.New()
	if !info.IsDir() {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		v := ctx.CompileBytes(src, cue.Filename(path))
		return Compile(v, filepath.Dir(path))
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: path})
	if len(instances) == 0 {
		return nil, fmt.Errorf("manifest %s: no CUE instances loaded", path)
	}
	if err := instances[0].Err; err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(ctx.BuildInstance(instances[0]), path)
}

// Parse compiles manifest source. filename is used for error positions and
// its directory for relative file references.
func Parse(filename string, src []byte) (*Manifest, error) {
	v := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	return Compile(v, filepath.Dir(filename))
}

// Compile checks v against the manifest schema and extracts a Manifest.
// Files named by document.file and reducer.file are read relative to
// baseDir.
func Compile(v cue.Value, baseDir string) (*Manifest, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	def := v.Context().CompileString(schema).LookupPath(cue.ParsePath("#Manifest"))
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	m := &Manifest{BaseDir: baseDir}

	if name := v.LookupPath(cue.ParsePath("name")); name.Exists() {
		s, err := name.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		m.Name = s
	}

	html, err := sourceText(v.LookupPath(cue.ParsePath("document")), "html", baseDir)
	if err != nil {
		return nil, err
	}
	if html == "" {
		return nil, &CompileError{
			Field:   "document",
			Message: "document needs html or file",
			Pos:     v.LookupPath(cue.ParsePath("document")).Pos(),
		}
	}
	m.HTML = html

	if m.Organisms, err = parseOrganisms(v); err != nil {
		return nil, err
	}
	if m.Layout, err = parseLayout(v); err != nil {
		return nil, err
	}
	if m.Reducer, err = parseReducer(v, baseDir); err != nil {
		return nil, err
	}
	if m.Actions, err = parseActions(v, m.Organisms); err != nil {
		return nil, err
	}
	return m, nil
}

// sourceText returns the inline field or the contents of the file field.
func sourceText(v cue.Value, inline, baseDir string) (string, error) {
	if iv := v.LookupPath(cue.ParsePath(inline)); iv.Exists() {
		if fv := v.LookupPath(cue.ParsePath("file")); fv.Exists() {
			return "", &CompileError{
				Field:   inline,
				Message: fmt.Sprintf("%s and file are mutually exclusive", inline),
				Pos:     fv.Pos(),
			}
		}
		s, err := iv.String()
		if err != nil {
			return "", formatCUEError(err)
		}
		return s, nil
	}

	fv := v.LookupPath(cue.ParsePath("file"))
	if !fv.Exists() {
		return "", nil
	}
	name, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	if !filepath.IsAbs(name) {
		name = filepath.Join(baseDir, name)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", &CompileError{Field: "file", Message: err.Error(), Pos: fv.Pos()}
	}
	return string(data), nil
}

func parseOrganisms(v cue.Value) ([]string, error) {
	ov := v.LookupPath(cue.ParsePath("organisms"))
	iter, err := ov.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []string
	seen := make(map[string]bool)
	for iter.Next() {
		sel, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if seen[sel] {
			return nil, &CompileError{
				Field:   "organisms",
				Message: fmt.Sprintf("duplicate organism %q", sel),
				Pos:     iter.Value().Pos(),
			}
		}
		if err := dom.ValidSelector(sel); err != nil {
			return nil, &CompileError{Field: "organisms", Message: err.Error(), Pos: iter.Value().Pos()}
		}
		seen[sel] = true
		out = append(out, sel)
	}
	if len(out) == 0 {
		return nil, &CompileError{
			Field:   "organisms",
			Message: "at least one organism is required",
			Pos:     ov.Pos(),
		}
	}
	return out, nil
}

func parseLayout(v cue.Value) ([]LayoutEntry, error) {
	lv := v.LookupPath(cue.ParsePath("layout"))
	if !lv.Exists() {
		return nil, nil
	}
	iter, err := lv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []LayoutEntry
	for iter.Next() {
		sel := iter.Label()
		entry := LayoutEntry{Selector: sel}

		if rv := iter.Value().LookupPath(cue.ParsePath("rect")); rv.Exists() {
			r := &dom.Rect{}
			fields := map[string]*float64{
				"top": &r.Top, "right": &r.Right, "bottom": &r.Bottom, "left": &r.Left,
				"width": &r.Width, "height": &r.Height, "x": &r.X, "y": &r.Y,
			}
			for key, slot := range fields {
				fv := rv.LookupPath(cue.ParsePath(key))
				if !fv.Exists() {
					continue
				}
				f, err := fv.Float64()
				if err != nil {
					return nil, formatCUEError(err)
				}
				*slot = f
			}
			completeRect(r, rv)
			entry.Box.Rect = r
		}

		if mv := iter.Value().LookupPath(cue.ParsePath("metrics")); mv.Exists() {
			metrics, err := mv.Fields()
			if err != nil {
				return nil, formatCUEError(err)
			}
			entry.Box.Metrics = make(map[ir.Method]float64)
			for metrics.Next() {
				name := metrics.Label()
				m := ir.ParseMethod(name)
				if !m.Has(ir.TraitNumeric) {
					return nil, &CompileError{
						Field:   "layout.metrics",
						Message: fmt.Sprintf("%q is not a metric", name),
						Pos:     metrics.Value().Pos(),
					}
				}
				f, err := metrics.Value().Float64()
				if err != nil {
					return nil, formatCUEError(err)
				}
				entry.Box.Metrics[m] = f
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// completeRect derives right, bottom, x and y when the manifest leaves them
// out.
func completeRect(r *dom.Rect, rv cue.Value) {
	missing := func(key string) bool { return !rv.LookupPath(cue.ParsePath(key)).Exists() }
	if missing("right") {
		r.Right = r.Left + r.Width
	}
	if missing("bottom") {
		r.Bottom = r.Top + r.Height
	}
	if missing("x") {
		r.X = r.Left
	}
	if missing("y") {
		r.Y = r.Top
	}
}

func parseReducer(v cue.Value, baseDir string) (*ReducerSpec, error) {
	rv := v.LookupPath(cue.ParsePath("reducer"))
	if !rv.Exists() {
		return nil, nil
	}
	src, err := sourceText(rv, "script", baseDir)
	if err != nil {
		return nil, err
	}
	if src == "" {
		return nil, &CompileError{Field: "reducer", Message: "reducer needs script or file", Pos: rv.Pos()}
	}

	spec := &ReducerSpec{Name: "reducer", Source: src}
	if fv := rv.LookupPath(cue.ParsePath("file")); fv.Exists() {
		spec.Name, _ = fv.String()
	}
	if tv := rv.LookupPath(cue.ParsePath("timeout")); tv.Exists() {
		s, err := tv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if _, err := time.ParseDuration(s); err != nil {
			return nil, &CompileError{Field: "reducer.timeout", Message: err.Error(), Pos: tv.Pos()}
		}
		spec.Timeout = s
	}
	return spec, nil
}

func parseActions(v cue.Value, organisms []string) ([]ActionSpec, error) {
	av := v.LookupPath(cue.ParsePath("actions"))
	if !av.Exists() {
		return nil, nil
	}
	iter, err := av.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	known := make(map[string]bool, len(organisms))
	for _, sel := range organisms {
		known[sel] = true
	}

	var out []ActionSpec
	for iter.Next() {
		item := iter.Value()
		spec := ActionSpec{Pos: item.Pos()}

		if spec.Organism, err = item.LookupPath(cue.ParsePath("organism")).String(); err != nil {
			return nil, formatCUEError(err)
		}
		if !known[spec.Organism] {
			return nil, &CompileError{
				Field:   "actions.organism",
				Message: fmt.Sprintf("organism %q is not declared", spec.Organism),
				Pos:     item.Pos(),
			}
		}
		if spec.Method, err = item.LookupPath(cue.ParsePath("method")).String(); err != nil {
			return nil, formatCUEError(err)
		}

		spec.Args = []ir.Value{}
		if argsVal := item.LookupPath(cue.ParsePath("args")); argsVal.Exists() {
			raw, err := argsVal.MarshalJSON()
			if err != nil {
				return nil, formatCUEError(err)
			}
			parsed, err := ir.ParseJSON(raw)
			if err != nil {
				return nil, &CompileError{Field: "actions.args", Message: err.Error(), Pos: argsVal.Pos()}
			}
			if spec.Args, err = ir.NormalizeArgs(parsed); err != nil {
				return nil, &CompileError{Field: "actions.args", Message: err.Error(), Pos: argsVal.Pos()}
			}
		}

		if mv := item.LookupPath(cue.ParsePath("member")); mv.Exists() {
			raw, err := mv.MarshalJSON()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if err := json.Unmarshal(raw, &spec.Target); err != nil {
				return nil, &CompileError{Field: "actions.member", Message: err.Error(), Pos: mv.Pos()}
			}
		}
		out = append(out, spec)
	}
	return out, nil
}

// CompileError represents a manifest error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
