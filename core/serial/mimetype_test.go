package serial

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMimeType(t *testing.T) {
	mt, err := ParseMimeType("Application/JSON; Version=1.0.2; encoding=UTF-8; x-foo=bar")
	require.NoError(t, err)
	require.Equal(t, "application", mt.Primary())
	require.Equal(t, "json", mt.Sub())
	require.Equal(t, "application/json", mt.BaseType())
	require.Equal(t, "1.0.2", mt.Version(DefaultVersion))
	require.Equal(t, "utf-8", mt.Encoding())
	v, ok := mt.Param("X-Foo")
	require.True(t, ok)
	require.Equal(t, "bar", v)
}

func TestParseMimeType_Defaults(t *testing.T) {
	mt := MustParseMimeType("text/plain")
	require.Equal(t, DefaultVersion, mt.Version(DefaultVersion))
	require.Equal(t, "2.0.0", mt.Version("2.0.0"))
	require.Equal(t, DefaultEncoding, mt.Encoding())
	require.False(t, mt.IsBase64())
}

func TestParseMimeType_Invalid(t *testing.T) {
	for _, s := range []string{"", "application", "application/", "/json", "a/b/c", "application/json; version"} {
		t.Run(s, func(t *testing.T) {
			_, err := ParseMimeType(s)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrFormat))
			var fe *FormatError
			require.ErrorAs(t, err, &fe)
		})
	}
	require.Panics(t, func() { MustParseMimeType("nope") })
}

func TestMimeType_RoundTrip(t *testing.T) {
	for _, s := range []string{
		"application/json",
		"application/xml; version=1.0.0",
		"text/plain; encoding=iso-8859-1; version=2",
		"application/json; transfer-encoding=base64; version=1.0.0; encoding=utf-8",
	} {
		t.Run(s, func(t *testing.T) {
			mt := MustParseMimeType(s)
			again, err := ParseMimeType(mt.String())
			require.NoError(t, err)
			require.True(t, mt.Equal(again))
			require.Equal(t, mt.String(), again.String())
			require.Equal(t, mt.Key(), again.Key())
		})
	}
}

func TestMimeType_EqualIgnoresOrderAndCase(t *testing.T) {
	a := MustParseMimeType("application/json; version=1.0.0; encoding=utf-8")
	b := MustParseMimeType("APPLICATION/json;encoding=UTF-8;version=1.0.0")
	require.True(t, a.Equal(b))
	require.Equal(t, a.String(), b.String())
	require.Equal(t, a.Key(), b.Key())

	require.True(t, MimeJSON.Equal(MimeJSON.WithEncoding("utf-8")))
	require.False(t, a.Equal(a.WithVersion("2.0.0")))
	require.False(t, a.Equal(a.WithEncoding("iso-8859-1")))
	require.False(t, a.Equal(MustParseMimeType("application/xml; version=1.0.0")))
}

func TestMimeType_WithIsImmutable(t *testing.T) {
	a := MustParseMimeType("application/json; version=1.0.0")
	b := a.WithBase64()
	require.False(t, a.IsBase64())
	require.True(t, b.IsBase64())
	require.Equal(t, "application/json; transfer-encoding=base64; version=1.0.0", b.String())
	require.False(t, b.Without(ParamTransferEncoding).IsBase64())
	require.True(t, b.IsBase64())
}

func TestMimeType_Text(t *testing.T) {
	var mt MimeType
	require.NoError(t, mt.UnmarshalText([]byte("application/xml; version=3")))
	b, err := mt.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "application/xml; version=3", string(b))
	require.Error(t, mt.UnmarshalText([]byte("broken")))
	require.True(t, MimeType{}.IsZero())
	require.Equal(t, "", MimeType{}.String())
}
