package bufferr

import (
	"errors"
	"testing"
)

func TestOutOfRangeWrapsSentinel(t *testing.T) {
	err := OutOfRange("offset", 10, 5)
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("OutOfRange result does not match ErrOutOfRange via errors.Is")
	}
}

func TestInvariantWrapsSentinel(t *testing.T) {
	err := Invariant("tree shape corrupted")
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("Invariant result does not match ErrInvariant via errors.Is")
	}
}

func TestIoErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := NewIoError("/doc.txt", 42, cause)
	if !errors.Is(err, cause) {
		t.Fatalf("NewIoError result does not unwrap to its cause")
	}
}

func TestRecoverableInPlaceCrashMatchesSentinelKind(t *testing.T) {
	err := &RecoverableInPlaceCrash{
		ManifestPath: "/recovery/m.json",
		DestPath:     "/doc.txt",
		TempPath:     "/doc.txt.tmp",
	}
	if !errors.Is(err, ErrRecoverableKind) {
		t.Fatalf("RecoverableInPlaceCrash does not match ErrRecoverableKind via errors.Is")
	}
}
