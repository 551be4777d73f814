package wiki

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "mixed whitespace", in: "  foo\n\tbar  ", want: "foo bar"},
		{name: "already clean", in: "レオン", want: "レオン"},
		{name: "ideographic space", in: "葵　　ちゃん", want: "葵 ちゃん"},
		{name: "only spaces", in: " \n\t ", want: ""},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
