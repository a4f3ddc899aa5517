package i2cmaster_test

import (
	"context"
	"errors"
	"testing"

	"github.com/amken3d/i2cmaster"
)

// fakeRecovery records whether Recover was invoked and returns a scripted
// error, standing in for a real GPIO bit-bang implementation.
type fakeRecovery struct {
	called bool
	err    error
}

func (r *fakeRecovery) Recover(ctx context.Context) error {
	r.called = true
	return r.err
}

func TestResetRequiresRecovery(t *testing.T) {
	fp := newFakePlatform(nil)
	i2cmaster.RegisterPlatform(testPort, fp)

	in, err := i2cmaster.Open(testPort, i2cmaster.WithPolledDispatch())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer in.Close()

	if err := in.Reset(context.Background()); err != i2cmaster.ErrNoRecovery {
		t.Fatalf("Reset() without a Recovery = %v, want ErrNoRecovery", err)
	}
}

func TestResetRunsRecoveryAndReinitializes(t *testing.T) {
	fp := newFakePlatform(nil)
	i2cmaster.RegisterPlatform(testPort, fp)
	rec := &fakeRecovery{}

	in, err := i2cmaster.Open(testPort,
		i2cmaster.WithPolledDispatch(),
		i2cmaster.WithRecovery(rec),
	)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer in.Close()

	if !fp.pinsConfig {
		t.Fatal("expected pins configured after Open")
	}

	if err := in.Reset(context.Background()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if !rec.called {
		t.Error("expected Reset to invoke the installed Recovery")
	}
	if !fp.pinsConfig {
		t.Error("expected pins reconfigured after Reset")
	}
}

func TestResetPropagatesRecoveryError(t *testing.T) {
	fp := newFakePlatform(nil)
	i2cmaster.RegisterPlatform(testPort, fp)
	wantErr := errors.New("sda stuck low")
	rec := &fakeRecovery{err: wantErr}

	in, err := i2cmaster.Open(testPort,
		i2cmaster.WithPolledDispatch(),
		i2cmaster.WithRecovery(rec),
	)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer in.Close()

	if err := in.Reset(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("Reset() error = %v, want %v", err, wantErr)
	}
}

func TestResetOnInterruptModeReattachesIRQ(t *testing.T) {
	fp := newFakePlatform(nil)
	i2cmaster.RegisterPlatform(testPort, fp)
	rec := &fakeRecovery{}

	in, err := i2cmaster.Open(testPort,
		i2cmaster.WithInterruptDispatch(),
		i2cmaster.WithRecovery(rec),
	)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer in.Close()

	if !fp.irqAttached {
		t.Fatal("expected IRQ attached after Open in interrupt mode")
	}

	if err := in.Reset(context.Background()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if !fp.irqAttached {
		t.Error("expected IRQ reattached after Reset in interrupt mode")
	}
}

func TestResetOnClosedInstance(t *testing.T) {
	fp := newFakePlatform(nil)
	i2cmaster.RegisterPlatform(testPort, fp)

	in, err := i2cmaster.Open(testPort, i2cmaster.WithPolledDispatch())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := in.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := in.Reset(context.Background()); err != i2cmaster.ErrClosed {
		t.Fatalf("Reset() on a closed Instance = %v, want ErrClosed", err)
	}
}
