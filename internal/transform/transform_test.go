package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryguy/jsctx/internal/core"
)

func TestPreparePlainScriptUnchanged(t *testing.T) {
	src := "function add(a, b) { return a + b; }\nlet x = 1;"
	out, err := Prepare(src, core.LoaderJS, "<compile>")
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestPrepareEmptySource(t *testing.T) {
	out, err := Prepare("", core.LoaderJS, "<compile>")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPrepareSyntaxErrorPosition(t *testing.T) {
	_, err := Prepare("let ok = 1;\nfunction (", core.LoaderJS, "broken.js")
	var ce *core.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 2, ce.Line)
	assert.Equal(t, "broken.js", ce.File)
	assert.NotEmpty(t, ce.Message)
	assert.Contains(t, ce.Error(), "broken.js at 2:")
}

func TestPrepareTypeScript(t *testing.T) {
	out, err := Prepare("function add(a: number, b: number): number { return a + b; }", core.LoaderTS, "add.ts")
	require.NoError(t, err)
	assert.Contains(t, out, "function add(a, b)")
	assert.NotContains(t, out, ": number")
}

func TestPrepareModuleInstallsExports(t *testing.T) {
	out, err := Prepare("export function add(a, b) { return a + b; }\nexport default { mul(a, b) { return a * b; } };", core.LoaderModule, "mod.mjs")
	require.NoError(t, err)
	assert.Contains(t, out, exportsGlobal)
	assert.Contains(t, out, "globalThis[k] = m[k]")
	assert.NotContains(t, out, "export {")
	assert.NotContains(t, out, "export default")
	assert.NotContains(t, out, "export function")
}

func TestPrepareTypeScriptModule(t *testing.T) {
	out, err := Prepare("export const twice = (n: number) => n * 2;", core.LoaderModule, "mod.mts")
	require.NoError(t, err)
	assert.NotContains(t, out, ": number")
}

func TestLoaderForPath(t *testing.T) {
	cases := map[string]core.Loader{
		"a.js":     core.LoaderJS,
		"a.cjs":    core.LoaderJS,
		"a.ts":     core.LoaderTS,
		"a.CTS":    core.LoaderTS,
		"a.mjs":    core.LoaderModule,
		"a.mts":    core.LoaderModule,
		"noext":    core.LoaderJS,
		"dir/x.ts": core.LoaderTS,
	}
	for path, want := range cases {
		assert.Equal(t, want, LoaderForPath(path), path)
	}
}
