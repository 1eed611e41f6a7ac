package ports

import (
	"context"

	"github.com/alejandrodnm/blackedge/internal/domain"
)

// FeedSource obtiene el payload crudo de oportunidades de un upstream.
// El payload se devuelve sin interpretar: la normalización es responsabilidad del router.
type FeedSource interface {
	// FetchRaw devuelve el cuerpo JSON de la respuesta. Un status no-2xx es un error.
	FetchRaw(ctx context.Context) ([]byte, error)
}

// ShortHorizonProvider obtiene el feed de mercados cripto de ventana corta.
type ShortHorizonProvider interface {
	FetchShortHorizon(ctx context.Context) (domain.ShortHorizonFeed, error)
}
