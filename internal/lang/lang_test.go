package lang

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		name string
		text string
		want Language
	}{
		{"empty", "", English},
		{"blank", "   ", English},
		{"no keywords", "xyz 123", English},
		{"english", "Why is the router not working? Please help and thank you", English},
		{"afrikaans", "Hoekom werk my internet nie? Asseblief, dankie", Afrikaans},
		{"zulu", "Sawubona, ngiyabonga kakhulu", Zulu},
		{"case insensitive", "SAWUBONA UNJANI", Zulu},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Detect(tc.text))
		})
	}
}
