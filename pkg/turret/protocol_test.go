package turret

import (
	"errors"
	"testing"
)

func TestEncodeSetAngles(t *testing.T) {
	got := encodeSetAngles(ServoAngles{H: 92.5, V: 60})
	if got != "(92.50,60.00)" {
		t.Errorf("got %q, want (92.50,60.00)", got)
	}
}

func TestEncodeSetNormalized(t *testing.T) {
	got := encodeSetNormalized(0.5, 0.25)
	if got != "norm(0.50,0.25)" {
		t.Errorf("got %q, want norm(0.50,0.25)", got)
	}
}

func TestParseAck(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr error
	}{
		{name: "ok", reply: "1", wantErr: nil},
		{name: "ok with whitespace", reply: " 1\n", wantErr: nil},
		{name: "rejected", reply: "0", wantErr: ErrRejected},
		{name: "garbage", reply: "yes", wantErr: ErrProtocol},
		{name: "empty", reply: "", wantErr: ErrProtocol},
		{name: "tuple instead of ack", reply: "(1,2)", wantErr: ErrProtocol},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := parseAck(tc.reply)
			if !errors.Is(err, tc.wantErr) && err != tc.wantErr {
				t.Errorf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestParseAngles(t *testing.T) {
	a, err := parseAngles("(92.50,60.00)")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if a.H != 92.5 || a.V != 60 {
		t.Errorf("got (%v,%v), want (92.5,60)", a.H, a.V)
	}

	// Firmware rounds but may add spaces.
	a, err = parseAngles("(90, 60)")
	if err != nil {
		t.Fatalf("parse with spaces failed: %v", err)
	}
	if a.H != 90 || a.V != 60 {
		t.Errorf("got (%v,%v), want (90,60)", a.H, a.V)
	}

	for _, bad := range []string{"", "90,60", "(90)", "(90,60,30)", "(a,b)", "((90,60))"} {
		if _, err := parseAngles(bad); !errors.Is(err, ErrProtocol) {
			t.Errorf("parseAngles(%q): got %v, want ErrProtocol", bad, err)
		}
	}
}

func TestParseLimits(t *testing.T) {
	lim, err := parseLimits("((30,150),(0,120))")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	want := ServoLimits{HMin: 30, HMax: 150, VMin: 0, VMax: 120}
	if lim != want {
		t.Errorf("got %+v, want %+v", lim, want)
	}

	lim, err = parseLimits("((30.00, 150.00), (0.00, 120.00))")
	if err != nil {
		t.Fatalf("parse with spaces failed: %v", err)
	}
	if lim != want {
		t.Errorf("got %+v, want %+v", lim, want)
	}

	bad := []string{
		"",
		"(30,150),(0,120)",
		"((30,150))",
		"((30,150),(0,120),(1,2))",
		"((a,b),(c,d))",
		"((150,30),(0,120))", // empty H range
		"1",
	}
	for _, s := range bad {
		if _, err := parseLimits(s); !errors.Is(err, ErrProtocol) {
			t.Errorf("parseLimits(%q): got %v, want ErrProtocol", s, err)
		}
	}
}
