package ports

import (
	"context"

	"github.com/alejandrodnm/blackedge/internal/domain"
)

// Notifier presenta la lista puntuada al usuario.
type Notifier interface {
	// Notify muestra las señales ya ordenadas y de qué fuente salieron.
	Notify(ctx context.Context, source domain.Source, ranked []domain.ScoredSignal) error
}

// SnapshotPublisher difunde cada snapshot aplicado a otros consumidores.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snap *domain.Snapshot) error
}
