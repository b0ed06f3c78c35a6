package deepanalysis

import (
	"context"
	"errors"

	"github.com/wonny/argus/backend/internal/contracts"
)

// ErrDisabled is returned when the deep-analysis service is not configured
var ErrDisabled = errors.New("deep-analysis service not configured")

// Null is the no-op analyzer used when DEEP_BASE_URL is unset.
// 설정 없으면 심층 분석 없음. 파이프라인은 기본 서브시그널만으로 동작한다.
type Null struct{}

// NewNull creates a disabled analyzer
func NewNull() *Null {
	return &Null{}
}

// Enabled always reports false
func (n *Null) Enabled() bool {
	return false
}

// Analyze always fails; callers checking Enabled never reach here
func (n *Null) Analyze(_ context.Context, _ contracts.DeepRequest) (*contracts.DeepResult, error) {
	return nil, ErrDisabled
}
