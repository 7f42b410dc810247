// Package tool invokes the external regridding, downscaling and layering
// programs that do the numerical work of each stage.
package tool

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Param is a named argument passed to a tool script as name="value".
type Param struct {
	Name  string
	Value string
}

// P builds a Param.
func P(name, value string) Param {
	return Param{Name: name, Value: value}
}

// Invocation describes one run of an interpreter over a tool script.
type Invocation struct {
	// Tool labels the invocation in logs and metrics: regrid, downscale,
	// shortwave or layer.
	Tool   string
	Exe    string
	Script string
	Params []Param
}

// Args is the argv passed to Exe. Each parameter is a separate element so
// paths with spaces or quotes never go through a shell.
func (inv Invocation) Args() []string {
	args := make([]string, 0, len(inv.Params)+1)
	for _, p := range inv.Params {
		args = append(args, fmt.Sprintf("%s=%q", p.Name, p.Value))
	}
	return append(args, inv.Script)
}

// String renders the command line for logs.
func (inv Invocation) String() string {
	return inv.Exe + " " + strings.Join(inv.Args(), " ")
}

// Runner executes tool invocations.
type Runner interface {
	Run(ctx context.Context, inv Invocation) error
}

// Env holds variables added to the environment of every tool process.
type Env map[string]string

// ToSlice renders the variables as sorted KEY=value pairs.
func (e Env) ToSlice() []string {
	out := make([]string, 0, len(e))
	for k, v := range e {
		out = append(out, k+"="+v)
	}
	slices.Sort(out)
	return out
}

// Merge overlays e on base, a list of KEY=value pairs such as os.Environ().
// Variables in e replace those of the same name in base.
func (e Env) Merge(base []string) []string {
	out := make([]string, 0, len(base)+len(e))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if _, override := e[name]; override {
			continue
		}
		out = append(out, kv)
	}
	return append(out, e.ToSlice()...)
}
