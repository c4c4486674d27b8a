package model

import (
	"encoding/json"
	"testing"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in   string
		want Money
		ok   bool
	}{
		{"0", 0, true},
		{"0.01", 1, true},
		{"1000.00", 100000, true},
		{"600", 60000, true},
		{"599.9", 59990, true},
		{"-12.34", -1234, true},
		{".50", 50, true},
		{"1.234", 0, false},
		{"", 0, false},
		{"abc", 0, false},
		{"12.x", 0, false},
		{"12.-5", 0, false},
		{"12.+5", 0, false},
		{"-12.-5", 0, false},
		{"1-2.00", 0, false},
	}
	for _, c := range cases {
		got, err := ParseMoney(c.in)
		if c.ok && err != nil {
			t.Fatalf("ParseMoney(%q): unexpected err: %v", c.in, err)
		}
		if !c.ok && err == nil {
			t.Fatalf("ParseMoney(%q): expected error", c.in)
		}
		if c.ok && got != c.want {
			t.Fatalf("ParseMoney(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestMoneyString(t *testing.T) {
	if s := MustMoney("1000.00").String(); s != "1000.00" {
		t.Fatalf("got %q", s)
	}
	if s := Money(1).String(); s != "0.01" {
		t.Fatalf("got %q", s)
	}
	if s := Money(-1234).String(); s != "-12.34" {
		t.Fatalf("got %q", s)
	}
}

func TestMoneyJSONRoundTrip(t *testing.T) {
	in := MustMoney("599.99")
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"599.99"` {
		t.Fatalf("got %s", data)
	}
	var out Money
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("round trip: %d != %d", out, in)
	}
}

func TestMoneyOffByOneCent(t *testing.T) {
	a := MustMoney("600.00")
	b := MustMoney("599.99")
	if a == b {
		t.Fatal("amounts off by one cent must not compare equal")
	}
	if a-b != 1 {
		t.Fatalf("difference = %d, want 1", a-b)
	}
}
