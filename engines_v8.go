//go:build v8

package jsctx

import (
	_ "github.com/cryguy/jsctx/internal/v8engine"
)
