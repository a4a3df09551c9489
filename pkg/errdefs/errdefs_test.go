package errdefs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		name      string
		err       error
		wantKind  Kind
		wantStage Stage
	}{
		{"transport fetch", Transport(StageFetch, base), KindTransport, StageFetch},
		{"transport sink", Transport(StageSink, base), KindTransport, StageSink},
		{"extraction", Extraction(ErrTableNotFound), KindExtraction, StageExtract},
		{"numeric", Numeric(base), KindNumeric, StageExtract},
		{"config", Config(base), KindConfig, StageConfig},
		{"wrapped", fmt.Errorf("cycle: %w", Numeric(base)), KindNumeric, StageExtract},
		{"plain", base, KindUnknown, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.wantKind {
				t.Errorf("KindOf() = %v, want %v", got, tt.wantKind)
			}
			if got := StageOf(tt.err); got != tt.wantStage {
				t.Errorf("StageOf() = %q, want %q", got, tt.wantStage)
			}
		})
	}
}

func TestNilIsNotWrapped(t *testing.T) {
	if err := Transport(StageFetch, nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestErrorMessage(t *testing.T) {
	err := Extraction(ErrTableNotFound)
	if !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("expected errors.Is to find ErrTableNotFound")
	}
	if got, want := err.Error(), "extract: extraction error: table not found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
