package support

import (
	"reflect"
	"testing"
)

func TestExtractIPs(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "filters private, duplicates and invalid octets",
			input: "10.0.0.1, 8.8.8.8, 8.8.8.8, 999.1.1.1, 1.1.1.1",
			want:  []string{"8.8.8.8", "1.1.1.1"},
		},
		{
			name:  "keeps first occurrence order across lines",
			input: "hit from 114.114.114.114\nthen 1.1.1.1 and again 114.114.114.114",
			want:  []string{"114.114.114.114", "1.1.1.1"},
		},
		{
			name:  "drops loopback multicast reserved and documentation ranges",
			input: "127.0.0.1 224.0.0.5 240.1.2.3 255.255.255.255 192.0.2.10 198.18.0.1 169.254.1.1 172.20.1.1 192.168.1.1 0.1.2.3",
			want:  []string{},
		},
		{
			name:  "keeps shared address space",
			input: "100.64.0.1",
			want:  []string{"100.64.0.1"},
		},
		{
			name:  "rejects leading zeros",
			input: "008.008.008.008",
			want:  []string{},
		},
		{
			name:  "no candidates",
			input: "nothing to see here",
			want:  []string{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractIPs(tc.input)
			if got == nil {
				t.Fatal("ExtractIPs returned nil, want empty slice")
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ExtractIPs(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestExtractIPsOutputIsPublicAndUnique(t *testing.T) {
	input := "1.2.3.4 10.1.1.1 1.2.3.4 8.8.4.4 300.1.1.1 1.2.3.4.5 224.1.1.1 9.9.9.9"

	seen := map[string]bool{}
	for _, ip := range ExtractIPs(input) {
		if seen[ip] {
			t.Fatalf("duplicate %s in output", ip)
		}
		seen[ip] = true

		addr, ok := ParsePublicIPv4(ip)
		if !ok || addr.String() != ip {
			t.Fatalf("%s is not a public IPv4 address", ip)
		}
	}
}

func TestSplitInputAndMerge(t *testing.T) {
	if got := SplitInput("  "); got != nil {
		t.Fatalf("SplitInput of blank text = %v, want nil", got)
	}

	got := SplitInput("8.8.8.8, ,1.1.1.1")
	want := []string{"8.8.8.8", " ", "1.1.1.1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitInput = %q, want %q", got, want)
	}

	if got := MergeInput("8.8.8.8", "1.1.1.1"); got != "8.8.8.8\n1.1.1.1" {
		t.Fatalf("MergeInput = %q", got)
	}
	if got := MergeInput("", "1.1.1.1"); got != "1.1.1.1" {
		t.Fatalf("MergeInput with empty current = %q", got)
	}
}
