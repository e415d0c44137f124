package util

import (
	"bytes"
	"testing"
)

func TestMD5Writer(t *testing.T) {
	var table = []struct {
		input string
		hex   string
	}{
		{"", "d41d8cd98f00b204e9800998ecf8427e"},
		{"hello", "5d41402abc4b2a76b9719d911017c592"},
		{"The quick brown fox jumps over the lazy dog", "9e107d9d372bb6826bd81d3542a419d6"},
	}
	for _, test := range table {
		var out bytes.Buffer
		hw := NewMD5Writer(&out)
		hw.Write([]byte(test.input))
		if s := hw.Sum(); s != test.hex {
			t.Errorf("%q: got %s, expected %s", test.input, s, test.hex)
		}
		if out.String() != test.input {
			t.Errorf("%q: wrapped writer received %q", test.input, out.String())
		}
		if !hw.Check(test.hex) {
			t.Errorf("%q: Check rejected the correct hash", test.input)
		}
		if !hw.Check("") {
			t.Errorf("%q: Check rejected the empty goal", test.input)
		}
		if hw.Check("ffffffffffffffffffffffffffffffff") {
			t.Errorf("%q: Check accepted a wrong hash", test.input)
		}
	}
}

func TestMD5WriterPlain(t *testing.T) {
	hw := NewMD5WriterPlain()
	hw.Write([]byte("hel"))
	hw.Write([]byte("lo"))
	if s := hw.Sum(); s != "5d41402abc4b2a76b9719d911017c592" {
		t.Errorf("got %s, expected the hash of \"hello\"", s)
	}
}
