package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBtoa(t *testing.T) {
	got, err := btoa("hello")
	require.NoError(t, err)
	assert.Equal(t, "aGVsbG8=", got)

	got, err = btoa("ÿ\u0000")
	require.NoError(t, err)
	assert.Equal(t, "/wA=", got)

	got, err = btoa("")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	_, err = btoa("€")
	assert.ErrorIs(t, err, errNotLatin1)
}

func TestAtob(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"aGVsbG8=", "hello"},
		{"aGVsbG8", "hello"},
		{" aGVs\nbG8= ", "hello"},
		{"/wA=", "ÿ\u0000"},
		{"", ""},
	}
	for _, tc := range cases {
		got, err := atob(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestAtobRejectsInvalid(t *testing.T) {
	for _, in := range []string{"a", "ab=c", "a*bc", "abcde"} {
		_, err := atob(in)
		assert.ErrorIs(t, err, errInvalidBase64, in)
	}
}

func TestValidName(t *testing.T) {
	for _, ok := range []string{"add", "$x", "_private", "api.math.add", "a1.b2"} {
		assert.True(t, ValidName(ok), ok)
	}
	for _, bad := range []string{"", "1abc", "a..b", "a.", ".a", "a b", "a();b", "a[0]"} {
		assert.False(t, ValidName(bad), bad)
	}
}

func TestScriptsQuoteTheirInputs(t *testing.T) {
	assert.Equal(t, `__jsctx.invoke(7, "api.add", "[\"a\",[]]", true)`, InvokeScript(7, "api.add", `["a",[]]`, true))
	assert.Equal(t, `__jsctx.evaluate(3, "1 + \"x\"", false)`, EvaluateScript(3, `1 + "x"`, false))
}

func TestNamesFollowTable(t *testing.T) {
	names := Names()
	require.Len(t, names, len(Table))
	assert.Equal(t, "codec", names[0])
	assert.Equal(t, "invoke", names[len(names)-1])
}
