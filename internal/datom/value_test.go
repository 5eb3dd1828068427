package datom

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_TypeTags(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{String("a"), `s"a"`},
		{Int(-3), `i-3`},
		{Bool(true), `btrue`},
		{Ref(EID(9)), `r9`},
		{Array{Int(1), String("x")}, `a[i1,s"x"]`},
		{Object{"b": Int(2), "a": Int(1)}, `o{"a":i1,"b":i2}`},
	}

	for _, tt := range tests {
		got, err := MarshalCanonical(tt.v)
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(got))
	}
}

func TestMarshalCanonical_NoHTMLEscape(t *testing.T) {
	got, err := MarshalCanonical(String("<a&b>"))
	require.NoError(t, err)
	assert.Equal(t, `s"<a&b>"`, string(got))
}

func TestMarshalCanonical_LineSeparators(t *testing.T) {
	got, err := MarshalCanonical(String("a\u2028b"))
	require.NoError(t, err)
	assert.Equal(t, "s\"a\u2028b\"", string(got))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// e + combining acute vs precomposed.
	assert.Equal(t, ValueKey(String("e\u0301")), ValueKey(String("\u00e9")))
}

func TestMarshalCanonical_RejectsNil(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Object{"a": Int(1)}, Object{"a": Int(1)}))
	assert.False(t, Equal(Int(1), Ref(1)))
	assert.False(t, Equal(Int(1), nil))
	assert.True(t, Equal(nil, nil))
}

func TestMarshalCanonical_InvalidUTF8(t *testing.T) {
	got, err := MarshalCanonical(String("a\xffb\\x"))
	require.NoError(t, err)
	assert.Equal(t, `s"a\xffb\\x"`, string(got))

	assert.NotEqual(t, ValueKey(String("\xff")), ValueKey(String("\xfe")))
	assert.NotEqual(t, ValueKey(String("\xff")), ValueKey(String("\ufffd")))
	assert.NotEqual(t, ValueKey(String("\xff")), ValueKey(String(`\xff`)))
	assert.False(t, Equal(String("\xff"), String("\xfe")))
}

func TestCheckValue(t *testing.T) {
	assert.NoError(t, CheckValue(Array{Int(1), Object{"k": String("v")}}))

	for _, v := range []Value{nil, Array{nil}, Object{"k": nil}, Array{Array{Int(1), nil}}} {
		err := CheckValue(v)
		require.Error(t, err)
		assert.True(t, IsConfigurationError(err))
	}
}

func TestMarshalValue_RoundTrip(t *testing.T) {
	values := []Value{
		String("hello"),
		Int(42),
		Bool(false),
		Ref(NewEID(DefaultPart, 3)),
		Array{Int(1), Array{String("nested")}},
		Object{"k": String("v"), "n": Int(-1)},
	}

	for _, v := range values {
		data, err := MarshalValue(v)
		require.NoError(t, err)

		got, err := UnmarshalValue(data)
		require.NoError(t, err)
		assert.True(t, Equal(v, got), "round trip of %s gave %s", data, FormatValue(got))
	}
}

func TestUnmarshalValue_RejectsFloatsAndNull(t *testing.T) {
	_, err := UnmarshalValue([]byte(`1.5`))
	assert.Error(t, err)

	_, err = UnmarshalValue([]byte(`null`))
	assert.Error(t, err)
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{"$ref": 12})
	require.NoError(t, err)
	assert.Equal(t, Ref(12), v)

	v, err = FromAny(float64(3))
	require.NoError(t, err)
	assert.Equal(t, Int(3), v, "integral floats from YAML decode as Int")

	_, err = FromAny(3.25)
	assert.Error(t, err)
}

func TestProblems(t *testing.T) {
	p := NewProblemException(String("raw"), errors.New("boom"))
	assert.Equal(t, ProblemException, p.Kind)
	assert.Equal(t, "boom", p.Message)
	assert.Equal(t, `"raw"`, p.Original)
	assert.True(t, IsProblem(p))
	assert.False(t, IsProblem(String("raw")))

	assert.Equal(t, ProblemGotNull, NewProblemGotNull(Int(1)).Kind)
	assert.Equal(t, ProblemUnexpected, NewProblemUnexpected(Int(1), Bool(true)).Kind)

	assert.NotEqual(t, ValueKey(NewProblemGotNull(Int(1))), ValueKey(NewProblemGotNull(Int(2))))
}

func TestError_Format(t *testing.T) {
	err := NewRequiredMissingError(NewEID(DefaultPart, 1), DbIdent)
	assert.Contains(t, err.Error(), "REQUIRED_MISSING")
	assert.True(t, IsRequiredMissing(err))
	assert.Equal(t, ErrCodeRequiredMissing, CodeOf(err))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}
