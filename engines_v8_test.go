//go:build v8

package jsctx

func init() {
	testEngines = append(testEngines, EngineV8)
}
