package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRuntimeUnknownEngine(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine = "spidermonkey"
	_, err := NewRuntime(cfg)
	assert.ErrorIs(t, err, ErrUnknownEngine)
	assert.True(t, PlatformInitialized())
}

func TestRegisterEngine(t *testing.T) {
	factoryErr := errors.New("factory called")
	RegisterEngine("test-engine", func(Config) (JSRuntime, error) { return nil, factoryErr }, nil)
	assert.Contains(t, Engines(), "test-engine")

	cfg := DefaultConfig()
	cfg.Engine = "test-engine"
	_, err := NewRuntime(cfg)
	require.ErrorIs(t, err, factoryErr)
}

func TestLoaderString(t *testing.T) {
	assert.Equal(t, "js", LoaderJS.String())
	assert.Equal(t, "ts", LoaderTS.String())
	assert.Equal(t, "module", LoaderModule.String())
	assert.Equal(t, "unknown", Loader(42).String())
}
