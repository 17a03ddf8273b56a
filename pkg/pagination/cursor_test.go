package pagination

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestEncodeDecodeCursor_RoundTrip(t *testing.T) {
	c := Cursor{
		P:   []string{"/data/jan.xlsx", "/data/feb.xlsx"},
		M:   "2024-01",
		Sf:  "jan.xlsx",
		Off: 50,
		Ps:  25,
	}
	tok, err := EncodeCursor(c)
	if err != nil {
		t.Fatalf("EncodeCursor error: %v", err)
	}
	// token should be url-safe base64 (no '+', '/', '=')
	if strings.ContainsAny(tok, "+/=") {
		t.Fatalf("token contains non-url-safe chars: %q", tok)
	}
	out, err := DecodeCursor(tok)
	if err != nil {
		t.Fatalf("DecodeCursor error: %v", err)
	}
	if len(out.P) != 2 || out.P[1] != c.P[1] || out.M != c.M || out.Sf != c.Sf || out.U != UnitRows || out.Off != c.Off || out.Ps != c.Ps {
		t.Fatalf("roundtrip mismatch: got %+v want %+v", out, c)
	}
}

func TestDecodeCursor_Invalid(t *testing.T) {
	h := SelectionHash([]string{"a.xlsx"}, "", "")
	cases := []string{
		"",    // empty
		"!!!", // not base64
		base64.RawURLEncoding.EncodeToString([]byte("not-json")),
		// missing required fields
		mustB64(`{"v":1}`),
		mustB64(`{"v":1,"p":[""],"u":"rows","off":0,"ps":10,"h":"` + h + `"}`),
		mustB64(`{"v":1,"p":["a.xlsx"],"u":"cells","off":0,"ps":10,"h":"` + h + `"}`),
		mustB64(`{"v":1,"p":["a.xlsx"],"u":"rows","off":-1,"ps":10,"h":"` + h + `"}`),
		mustB64(`{"v":1,"p":["a.xlsx"],"u":"rows","off":0,"ps":0,"h":"` + h + `"}`),
		// tampered selection
		mustB64(`{"v":1,"p":["a.xlsx"],"m":"2024-02","u":"rows","off":0,"ps":10,"h":"` + h + `"}`),
	}
	for i, tok := range cases {
		if _, err := DecodeCursor(tok); err == nil {
			t.Fatalf("case %d: expected error for token %q", i, tok)
		}
	}
}

func TestNextOffset(t *testing.T) {
	if got := NextOffset(-3, 5); got != 5 {
		t.Fatalf("NextOffset(-3,5) = %d", got)
	}
	if got := NextOffset(10, 0); got != 10 {
		t.Fatalf("NextOffset(10,0) = %d", got)
	}
}

func FuzzDecodeCursor(f *testing.F) {
	seeds := []string{
		"", "abc", mustB64(`{"v":1}`), mustB64(`{"p":["x"]}`),
		mustB64(`{"v":1,"p":["a.xlsx"],"u":"rows","off":0,"ps":1}`),
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, token string) {
		_, _ = DecodeCursor(token)
	})
}

func mustB64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}
