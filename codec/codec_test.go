package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Tags  []int32 `json:"tags" msgpack:"tags"`
	Name  string  `json:"name" msgpack:"name"`
	Width int     `json:"width" msgpack:"width"`
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "msgpack"} {
		c, ok := ByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, c.Name())
	}

	_, ok := ByName("cbor")
	assert.False(t, ok)
}

func TestCodecs_RoundTrip(t *testing.T) {
	in := payload{Tags: []int32{3, 1, 2}, Name: "numeric", Width: 8}

	for _, c := range []Codec{JSON{}, Msgpack{}} {
		t.Run(c.Name(), func(t *testing.T) {
			data := MustMarshal(c, in)

			var out payload
			require.NoError(t, c.Unmarshal(data, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestMustMarshal_DefaultCodec(t *testing.T) {
	data := MustMarshal(nil, payload{Name: "x"})

	var out payload
	require.NoError(t, Default.Unmarshal(data, &out))
	assert.Equal(t, "x", out.Name)
}
