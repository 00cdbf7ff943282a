package port

import (
	"context"

	"github.com/librasign/signcheck/internal/domain"
)

// Recognizer wraps the opaque sign-recognition capability. The call is
// synchronous and may take long; implementations must honor ctx.
type Recognizer interface {
	Infer(ctx context.Context, video []byte) (domain.Prediction, error)
}
