// Package transform prepares source text before it is installed in an
// engine: it syntax-checks plain scripts, strips TypeScript types and
// lowers ES modules to scripts whose exports become globals.
package transform

import (
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/cryguy/jsctx/internal/core"
)

// exportsGlobal receives the module namespace before it is spread onto
// globalThis.
const exportsGlobal = "globalThis.__jsctx_exports__"

// installExportsJS copies module exports onto globalThis so entry points
// are found by name. A default export that is an object contributes its
// properties as well.
const installExportsJS = `
(function() {
	var m = globalThis.__jsctx_exports__;
	delete globalThis.__jsctx_exports__;
	if (!m) return;
	var d = m.default;
	if (d !== null && typeof d === 'object') {
		Object.keys(d).forEach(function(k) { globalThis[k] = d[k]; });
	}
	Object.keys(m).forEach(function(k) {
		if (k !== 'default') globalThis[k] = m[k];
	});
})();
`

// LoaderForPath picks a loader from a file extension: .ts and .cts are
// TypeScript scripts, .mjs and .mts are modules, anything else is script.
func LoaderForPath(path string) core.Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".cts":
		return core.LoaderTS
	case ".mjs", ".mts":
		return core.LoaderModule
	default:
		return core.LoaderJS
	}
}

func isTypeScript(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".ts", ".mts", ".cts", ".tsx":
		return true
	}
	return false
}

// Prepare returns the script to install for source. Plain scripts come back
// unchanged once they parse. Parse failures are *core.CompileError.
func Prepare(source string, loader core.Loader, filename string) (string, error) {
	switch loader {
	case core.LoaderTS:
		return run(source, api.TransformOptions{
			Loader:     api.LoaderTS,
			Sourcefile: filename,
			Target:     api.ESNext,
		})
	case core.LoaderModule:
		esLoader := api.LoaderJS
		if isTypeScript(filename) {
			esLoader = api.LoaderTS
		}
		code, err := run(source, api.TransformOptions{
			Loader:     esLoader,
			Format:     api.FormatIIFE,
			GlobalName: exportsGlobal,
			Sourcefile: filename,
			Target:     api.ESNext,
		})
		if err != nil {
			return "", err
		}
		return code + installExportsJS, nil
	default:
		if _, err := run(source, api.TransformOptions{
			Loader:     api.LoaderJS,
			Sourcefile: filename,
			Target:     api.ESNext,
		}); err != nil {
			return "", err
		}
		return source, nil
	}
}

func run(source string, opts api.TransformOptions) (string, error) {
	result := api.Transform(source, opts)
	if len(result.Errors) > 0 {
		return "", compileError(result.Errors, opts.Sourcefile)
	}
	return string(result.Code), nil
}

// compileError reports the first parser message with its position.
func compileError(msgs []api.Message, filename string) *core.CompileError {
	m := msgs[0]
	ce := &core.CompileError{Message: m.Text, File: filename}
	if len(msgs) > 1 {
		var more []string
		for _, extra := range msgs[1:] {
			more = append(more, extra.Text)
		}
		ce.Message += " (also: " + strings.Join(more, "; ") + ")"
	}
	if loc := m.Location; loc != nil {
		ce.Line = loc.Line
		ce.Column = loc.Column
		if loc.File != "" {
			ce.File = loc.File
		}
	}
	return ce
}
