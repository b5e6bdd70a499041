//go:build cgo
// +build cgo

package rerank

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// ONNXReranker runs a cross-encoder (e.g. ms-marco-MiniLM) that maps an encoded
// (query, passage) pair to a single relevance logit named "logits".
type ONNXReranker struct {
	session   *ort.AdvancedSession
	maxTokens int
	tokenizer embedding.Tokenizer

	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	outputTensor        *ort.Tensor[float32]
	mu                  sync.Mutex
}

// NewONNXReranker loads the cross-encoder at modelPath.
func NewONNXReranker(modelPath string, maxTokens int) (*ONNXReranker, error) {
	if err := embedding.InitRuntime(); err != nil {
		return nil, err
	}
	r := &ONNXReranker{maxTokens: maxTokens, tokenizer: &embedding.SimpleTokenizer{}}
	ids, mask, types := r.tokenizer.TokenizePair("", "", maxTokens)
	shape := ort.NewShape(1, int64(maxTokens))

	var err error
	if r.inputIDsTensor, err = ort.NewTensor(shape, ids); err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	if r.attentionMaskTensor, err = ort.NewTensor(shape, mask); err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	if r.tokenTypeIDsTensor, err = ort.NewTensor(shape, types); err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	if r.outputTensor, err = ort.NewTensor(ort.NewShape(1, 1), make([]float32, 1)); err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to create logits tensor: %w", err)
	}
	r.session, err = ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"logits"},
		[]ort.ArbitraryTensor{r.inputIDsTensor, r.attentionMaskTensor, r.tokenTypeIDsTensor},
		[]ort.ArbitraryTensor{r.outputTensor},
		nil,
	)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return r, nil
}

// Score runs one inference per pair and returns sigmoid(logit).
func (r *ONNXReranker) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return nil, fmt.Errorf("reranker closed")
	}
	scores := make([]float64, len(passages))
	for i, p := range passages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ids, mask, types := r.tokenizer.TokenizePair(query, p, r.maxTokens)
		copy(r.inputIDsTensor.GetData(), ids)
		copy(r.attentionMaskTensor.GetData(), mask)
		copy(r.tokenTypeIDsTensor.GetData(), types)
		if err := r.session.Run(); err != nil {
			return nil, fmt.Errorf("rerank inference: %w", err)
		}
		scores[i] = utils.Sigmoid(float64(r.outputTensor.GetData()[0]))
	}
	return scores, nil
}

// Close destroys the session and tensors.
func (r *ONNXReranker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	if r.session != nil {
		err = r.session.Destroy()
		r.session = nil
	}
	if r.inputIDsTensor != nil {
		_ = r.inputIDsTensor.Destroy()
	}
	if r.attentionMaskTensor != nil {
		_ = r.attentionMaskTensor.Destroy()
	}
	if r.tokenTypeIDsTensor != nil {
		_ = r.tokenTypeIDsTensor.Destroy()
	}
	if r.outputTensor != nil {
		_ = r.outputTensor.Destroy()
	}
	r.inputIDsTensor, r.attentionMaskTensor, r.tokenTypeIDsTensor, r.outputTensor = nil, nil, nil, nil
	return err
}
