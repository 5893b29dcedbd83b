package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/famgate/famgate/internal/model"
)

func newTestClassifier() (*Classifier, *Recorder) {
	rec := NewRecorder(10)
	return NewClassifier(rec, zerolog.Nop()), rec
}

func TestClassifyProviderCodes(t *testing.T) {
	cls, _ := newTestClassifier()
	cases := []struct {
		provider string
		want     Code
	}{
		{"auth/invalid-credential", AuthError},
		{"auth/user-not-found", AuthError},
		{"firestore/permission-denied", PermissionError},
		{"firestore/unauthenticated", AuthError},
		{"firestore/deadline-exceeded", TimeoutError},
		{"firestore/unavailable", StorageError},
		{"firestore/not-found", StorageError},
		{"unavailable", RetryableError},
		{"aborted", RetryableError},
		{"something/else", UnknownError},
	}
	for _, tc := range cases {
		err := &ProviderError{ProviderCode: tc.provider, Err: errors.New("boom")}
		got := cls.Classify(err, Op{Name: "test"})
		if got.Code != tc.want {
			t.Errorf("provider %q = %s, want %s", tc.provider, got.Code, tc.want)
		}
	}
}

func TestClassifySentinels(t *testing.T) {
	cls, _ := newTestClassifier()
	cases := []struct {
		err  error
		want Code
	}{
		{fmt.Errorf("get: %w", model.ErrNotFound), StorageError},
		{fmt.Errorf("bad input: %w", model.ErrValidation), ValidationError},
		{fmt.Errorf("already decided: %w", model.ErrConflict), BusinessError},
		{context.DeadlineExceeded, TimeoutError},
		{errors.New("network unreachable"), NetworkError},
		{errors.New("connection refused by peer"), NetworkError},
		{errors.New("operation timed out"), TimeoutError},
		{errors.New("wat"), UnknownError},
	}
	for _, tc := range cases {
		got := cls.Classify(tc.err, Op{Name: "test"})
		if got.Code != tc.want {
			t.Errorf("%v = %s, want %s", tc.err, got.Code, tc.want)
		}
	}
}

func TestClassifyPassthrough(t *testing.T) {
	cls, _ := newTestClassifier()
	orig := New(BusinessError, Op{Name: "requests.decide"}, errors.New("terminal"))
	got := cls.Classify(fmt.Errorf("outer: %w", orig), Op{Name: "other"})
	if got.Code != BusinessError {
		t.Fatalf("code = %s, want business", got.Code)
	}
	if got.Op.Name != "requests.decide" {
		t.Fatalf("op = %q, want original preserved", got.Op.Name)
	}
}

func TestClassifyNeverNil(t *testing.T) {
	cls, _ := newTestClassifier()
	if cls.Classify(nil, Op{}) != nil {
		t.Fatal("nil error must classify to nil")
	}
	got := cls.Classify(errors.New(""), Op{})
	if got == nil || got.Code != UnknownError {
		t.Fatalf("empty error = %v, want unknown", got)
	}
}

func TestClassifyRecordsAndMessages(t *testing.T) {
	cls, rec := newTestClassifier()
	cls.Classify(errors.New("a"), Op{Name: "one"})
	cls.Classify(errors.New("b"), Op{Name: "two"})

	if rec.Len() != 2 {
		t.Fatalf("recorder len = %d, want 2", rec.Len())
	}
	recent := rec.Recent()
	if recent[0].Op.Name != "one" || recent[1].Op.Name != "two" {
		t.Fatalf("recent order wrong: %v", recent)
	}
	for _, e := range recent {
		if e.Message == "" {
			t.Fatalf("classified error missing user message")
		}
	}
}

func TestRecorderEviction(t *testing.T) {
	rec := NewRecorder(3)
	for i := 0; i < 5; i++ {
		rec.Record(&Error{Code: UnknownError, Op: Op{Name: fmt.Sprintf("op%d", i)}})
	}
	if rec.Len() != 3 {
		t.Fatalf("len = %d, want 3", rec.Len())
	}
	recent := rec.Recent()
	if recent[0].Op.Name != "op2" || recent[2].Op.Name != "op4" {
		t.Fatalf("eviction kept wrong entries: %s..%s", recent[0].Op.Name, recent[2].Op.Name)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("root: %w", model.ErrConflict)
	e := New(BusinessError, Op{Name: "x"}, cause)
	if !errors.Is(e, model.ErrConflict) {
		t.Fatal("classified error must unwrap to its cause chain")
	}
}
