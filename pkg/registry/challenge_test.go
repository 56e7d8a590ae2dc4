package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseChallenge(t *testing.T) {
	testCases := []struct {
		name   string
		header string
		expect Challenges
	}{
		{
			name:   "bearer",
			header: `Bearer realm="https://auth.example.com/token",service="registry.example.com",scope="repository:lib/app:pull"`,
			expect: Challenges{"bearer": {
				"realm":   "https://auth.example.com/token",
				"service": "registry.example.com",
				"scope":   "repository:lib/app:pull",
			}},
		},
		{
			name:   "case folding keeps values",
			header: `BEARER Realm="https://Auth.example.com/Token", SERVICE="Registry"`,
			expect: Challenges{"bearer": {
				"realm":   "https://Auth.example.com/Token",
				"service": "Registry",
			}},
		},
		{
			name:   "unquoted values",
			header: `Basic realm=registry , charset=UTF-8`,
			expect: Challenges{"basic": {"realm": "registry", "charset": "UTF-8"}},
		},
		{
			name:   "escaped quotes",
			header: `Bearer realm="https://auth.example.com/token",error_description="say \"hi\""`,
			expect: Challenges{"bearer": {
				"realm":             "https://auth.example.com/token",
				"error_description": `say "hi"`,
			}},
		},
		{
			name:   "trailing backslash",
			header: `Bearer realm="C:\",service="x"`,
			expect: Challenges{"bearer": {"realm": `C:\`, "service": "x"}},
		},
		{
			name:   "comma inside quotes",
			header: `Bearer scope="repository:a:pull,push",realm="https://auth.example.com/token"`,
			expect: Challenges{"bearer": {
				"scope": "repository:a:pull,push",
				"realm": "https://auth.example.com/token",
			}},
		},
		{
			name:   "multiple schemes",
			header: `Basic realm="basic-realm", Bearer realm="https://auth.example.com/token",service="registry"`,
			expect: Challenges{
				"basic":  {"realm": "basic-realm"},
				"bearer": {"realm": "https://auth.example.com/token", "service": "registry"},
			},
		},
		{
			name:   "scheme without parameters",
			header: `Negotiate`,
			expect: Challenges{"negotiate": {}},
		},
		{
			name:   "empty",
			header: ``,
			expect: Challenges{},
		},
		{
			name:   "unterminated quote is dropped",
			header: `Bearer realm="https://auth.example.com/token`,
			expect: Challenges{"bearer": {}, `realm="https://auth.example.com/token`: {}},
		},
	}

	for _, tC := range testCases {
		t.Run(tC.name, func(t *testing.T) {
			assert.Equal(t, tC.expect, ParseChallenge(tC.header))
		})
	}
}
