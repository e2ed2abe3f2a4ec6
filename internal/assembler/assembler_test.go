package assembler

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/answerd/internal/vectorstore"
)

func TestBuildContext(t *testing.T) {
	candidates := []vectorstore.Candidate{
		{ID: "contract_chunk_0", Text: "Payment is due within 30 days.", Source: "contract.pdf"},
		{ID: "lease_chunk_2", Text: "The lease term is 12 months.", Source: "lease.pdf"},
	}

	got := BuildContext(candidates)

	want := "[src:0] (from: contract.pdf)\nPayment is due within 30 days.\n\n" +
		"[src:1] (from: lease.pdf)\nThe lease term is 12 months."
	assert.Equal(t, want, got)
}

func TestBuildContextOneTagPerCandidate(t *testing.T) {
	candidates := make([]vectorstore.Candidate, 5)
	for i := range candidates {
		candidates[i] = vectorstore.Candidate{
			ID:     fmt.Sprintf("doc_chunk_%d", i),
			Text:   fmt.Sprintf("chunk %d", i),
			Source: "doc.pdf",
		}
	}

	got := BuildContext(candidates)
	for i := range candidates {
		assert.Equal(t, 1, strings.Count(got, fmt.Sprintf("[src:%d]", i)))
	}
	assert.NotContains(t, got, "[src:5]")
}

func TestBuildContextUnknownSource(t *testing.T) {
	got := BuildContext([]vectorstore.Candidate{{ID: "x_chunk_0", Text: "orphan text"}})
	assert.Equal(t, "[src:0] (from: unknown)\norphan text", got)
}

func TestBuildContextEmpty(t *testing.T) {
	assert.Equal(t, "", BuildContext(nil))
}

func TestVerifyCitations(t *testing.T) {
	candidates := []vectorstore.Candidate{
		{ID: "a", Text: "thirty days"},
		{ID: "b", Text: "twelve months"},
		{ID: "c", Text: "security deposit"},
	}

	tests := []struct {
		name   string
		answer string
		want   []int
	}{
		{
			name:   "cited and quoted",
			answer: "Payment is due in thirty days [src:0].",
			want:   nil,
		},
		{
			name:   "cited without quoting",
			answer: "See [src:1] for the lease term.",
			want:   []int{1},
		},
		{
			name:   "multiple suspect citations",
			answer: "Per [src:1] and [src:2], terms apply.",
			want:   []int{1, 2},
		},
		{
			name:   "uncited candidates are not flagged",
			answer: "The documents do not say.",
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifyCitations(tt.answer, candidates))
		})
	}
}
