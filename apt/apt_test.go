package apt

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestPanicInvokesSignaller(t *testing.T) {
	var buf bytes.Buffer
	sig := NewLogSignaller(slog.New(slog.NewTextHandler(&buf, nil)))
	Panic(context.Background(), sig, Info{Type: TypeBootloader, Reason: ReasonCRC, Addr: 0x08004000})

	out := buf.String()
	if !strings.Contains(out, "BOOTLOADER") || !strings.Contains(out, "CRC") {
		t.Fatalf("signalled output missing fields: %s", out)
	}
}

func TestPanicNilSignallerDoesNotPanic(t *testing.T) {
	Panic(context.Background(), nil, Info{Type: TypeException, Reason: ReasonFlash})
}

func TestTypeAndReasonString(t *testing.T) {
	cases := []struct {
		t    Type
		want string
	}{
		{TypeException, "EXCEPTION"},
		{TypeBootloader, "BOOTLOADER"},
		{TypeFirmware, "FIRMWARE"},
		{Type(99), "UNKNOWN"},
	}
	for _, c := range cases {
		if got := c.t.String(); got != c.want {
			t.Errorf("Type(%d).String() = %q, want %q", c.t, got, c.want)
		}
	}

	reasons := []struct {
		r    Reason
		want string
	}{
		{ReasonFWReturn, "FWRETURN"},
		{ReasonCRC, "CRC"},
		{ReasonFlash, "FLASH"},
		{ReasonUpdate, "UPDATE"},
		{Reason(99), "UNKNOWN"},
	}
	for _, c := range reasons {
		if got := c.r.String(); got != c.want {
			t.Errorf("Reason(%d).String() = %q, want %q", c.r, got, c.want)
		}
	}
}

func TestNewTableStampsVersion(t *testing.T) {
	tbl := NewTable(nil, nil, nil, nil, nil)
	if tbl.Version == 0 {
		t.Fatal("expected non-zero APT version")
	}
}
