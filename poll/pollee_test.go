package poll_test

import (
	"testing"

	"github.com/enclavekernel/libos/internal/bits"
	"github.com/enclavekernel/libos/poll"
	"github.com/stretchr/testify/require"
)

func TestPollee_ObserveImmediateIfAlreadyReady(t *testing.T) {
	p := poll.NewPollee(1)
	p.AddEvents(poll.In)

	o := p.Observe(poll.In)
	defer o.Cancel()

	select {
	case ev := <-o.Ready():
		require.True(t, ev.Has(poll.In))
	default:
		t.Fatal("expected immediate readiness")
	}
}

func TestPollee_AddEventsNotifiesMatchingObserver(t *testing.T) {
	p := poll.NewPollee(1)
	o := p.Observe(poll.Out)
	defer o.Cancel()

	select {
	case <-o.Ready():
		t.Fatal("should not be ready yet")
	default:
	}

	p.AddEvents(poll.In)
	select {
	case <-o.Ready():
		t.Fatal("unrelated event should not notify")
	default:
	}

	p.AddEvents(poll.Out)
	select {
	case ev := <-o.Ready():
		require.True(t, ev.Has(poll.Out))
	default:
		t.Fatal("expected notification for matching event")
	}
}

func TestPollee_DelEventsClearsWithoutNotify(t *testing.T) {
	p := poll.NewPollee(1)
	p.AddEvents(poll.In)
	require.True(t, p.Current().Has(poll.In))
	p.DelEvents(poll.In)
	require.False(t, p.Current().Has(poll.In))
}

func TestPollee_CancelStopsNotify(t *testing.T) {
	p := poll.NewPollee(bits.ObjectId(1))
	o := p.Observe(poll.In)
	o.Cancel()
	p.AddEvents(poll.In)
	select {
	case <-o.Ready():
		t.Fatal("canceled observer must not be notified")
	default:
	}
}

func TestPollee_ResetEventsReplacesBitset(t *testing.T) {
	p := poll.NewPollee(1)
	p.AddEvents(poll.In | poll.Out)
	p.ResetEvents(poll.Err)
	require.Equal(t, poll.Err, p.Current())
}
