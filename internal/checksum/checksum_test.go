package checksum

import (
	"io"
	"strings"
	"testing"
)

func TestSumKnownValue(t *testing.T) {
	got := Sum([]byte("abc"))
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("Sum(abc) = %s, want %s", got, want)
	}
}

func TestReaderMatchesSum(t *testing.T) {
	r := NewReader(strings.NewReader("temple bells"))
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if r.Sum() != Sum(data) {
		t.Errorf("reader digest %s != Sum %s", r.Sum(), Sum(data))
	}
	if r.Count() != int64(len("temple bells")) {
		t.Errorf("count = %d", r.Count())
	}
}
