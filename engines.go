package jsctx

import (
	_ "github.com/cryguy/jsctx/internal/gojaengine"
	_ "github.com/cryguy/jsctx/internal/quickjs"
)
