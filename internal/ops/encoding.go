package ops

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/cryguy/jsctx/internal/core"
)

var (
	errNotLatin1     = errors.New("btoa: string contains characters outside of the Latin1 range")
	errInvalidBase64 = errors.New("atob: invalid base64 string")
)

const encodingJS = `
(function() {
	globalThis.btoa = function(data) {
		if (arguments.length < 1) throw new TypeError("btoa requires at least 1 argument(s)");
		return __op_btoa(String(data));
	};
	globalThis.atob = function(data) {
		if (arguments.length < 1) throw new TypeError("atob requires at least 1 argument(s)");
		return __op_atob(String(data));
	};
})();
`

// SetupEncoding installs Go-backed atob and btoa.
func SetupEncoding(rt core.JSRuntime, _ Deps) error {
	if err := rt.RegisterFunc("__op_btoa", btoa); err != nil {
		return err
	}
	if err := rt.RegisterFunc("__op_atob", atob); err != nil {
		return err
	}
	return rt.Eval(encodingJS)
}

// btoa treats each character as one byte, as the web API does.
func btoa(s string) (string, error) {
	buf := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			return "", errNotLatin1
		}
		buf = append(buf, byte(r))
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// atob implements forgiving-base64 decode and returns one character per
// decoded byte.
func atob(s string) (string, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\n', '\f', '\r', ' ':
			return -1
		}
		return r
	}, s)
	if len(s)%4 == 0 {
		s = strings.TrimSuffix(s, "=")
		s = strings.TrimSuffix(s, "=")
	}
	if len(s)%4 == 1 {
		return "", errInvalidBase64
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '+' || c == '/') {
			return "", errInvalidBase64
		}
	}
	raw, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return "", errInvalidBase64
	}
	var b strings.Builder
	b.Grow(len(raw))
	for _, c := range raw {
		b.WriteRune(rune(c))
	}
	return b.String(), nil
}
