package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/blackedge/internal/domain"
)

// Storage persiste los snapshots aplicados en cada ciclo.
type Storage interface {
	// SaveSnapshot persiste el resumen del ciclo y las señales vistas.
	SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error

	// GetHistory devuelve las señales vistas en el rango de tiempo dado.
	GetHistory(ctx context.Context, from, to time.Time) ([]domain.MarketSignal, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}

// TradeJournal registra cada transición de un intento de ejecución.
type TradeJournal interface {
	RecordTrade(ctx context.Context, ex domain.TradeExecution) error
}
