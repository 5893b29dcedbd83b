package retry

import (
	"testing"
	"time"

	"github.com/famgate/famgate/internal/apperr"
)

func zeroJitterPolicy() Policy {
	p := NewPolicy()
	p.Jitter = nil
	return p
}

func TestShouldRetry(t *testing.T) {
	p := NewPolicy()
	cases := []struct {
		code apperr.Code
		want bool
	}{
		{apperr.RetryableError, true},
		{apperr.NetworkError, true},
		{apperr.TimeoutError, true},
		{apperr.AuthError, false},
		{apperr.StorageError, false},
		{apperr.ValidationError, false},
		{apperr.PermissionError, false},
		{apperr.BusinessError, false},
		{apperr.OfflineError, false},
		{apperr.UnknownError, false},
	}
	for _, tc := range cases {
		if got := p.ShouldRetry(&apperr.Error{Code: tc.code}); got != tc.want {
			t.Errorf("ShouldRetry(%s) = %v, want %v", tc.code, got, tc.want)
		}
	}
	if p.ShouldRetry(nil) {
		t.Error("ShouldRetry(nil) must be false")
	}
}

func TestDelayDoublesAndCaps(t *testing.T) {
	p := zeroJitterPolicy()
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, w := range want {
		if got := p.Delay(i); got != w {
			t.Errorf("Delay(%d) = %s, want %s", i, got, w)
		}
	}
}

func TestDelayJitterBounds(t *testing.T) {
	p := NewPolicy()
	for i := 0; i < 100; i++ {
		d := p.Delay(0)
		if d < DefaultBase || d >= DefaultBase+DefaultJitterSpan {
			t.Fatalf("Delay(0) = %s outside [1s, 2s)", d)
		}
	}
}
