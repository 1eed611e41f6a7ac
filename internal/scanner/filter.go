package scanner

import (
	"github.com/alejandrodnm/blackedge/internal/domain"
)

// FilterConfig contiene los parámetros configurables de filtrado de la vista.
type FilterConfig struct {
	// HideAvoid oculta las señales con recomendación AVOID.
	HideAvoid bool
	// MinVolume24h descarta mercados con poco volumen diario. Los arbitrajes siempre pasan.
	MinVolume24h float64
	// MinLiquidity descarta mercados con poca liquidez. Los arbitrajes siempre pasan.
	MinLiquidity float64
	// MaxResults corta la lista ya ordenada (0 = sin límite).
	MaxResults int
}

// DefaultFilterConfig devuelve una configuración de filtrado conservadora.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		HideAvoid:    true,
		MinVolume24h: 0,
		MinLiquidity: 0,
		MaxResults:   25,
	}
}

// Filter aplica los filtros configurados sobre una lista ya puntuada.
type Filter struct {
	cfg FilterConfig
}

// NewFilter crea un Filter con la configuración dada.
func NewFilter(cfg FilterConfig) *Filter {
	return &Filter{cfg: cfg}
}

// Apply devuelve las señales que pasan todos los filtros, respetando el orden de entrada.
func (f *Filter) Apply(ranked []domain.ScoredSignal) []domain.ScoredSignal {
	result := make([]domain.ScoredSignal, 0, len(ranked))
	for _, s := range ranked {
		if !f.passes(s) {
			continue
		}
		result = append(result, s)
		if f.cfg.MaxResults > 0 && len(result) == f.cfg.MaxResults {
			break
		}
	}
	return result
}

// passes devuelve true si la señal supera todos los criterios.
func (f *Filter) passes(s domain.ScoredSignal) bool {
	if f.cfg.HideAvoid && s.Recommendation == domain.RecAvoid {
		return false
	}
	if s.Signal.IsArbitrage {
		return true
	}
	if f.cfg.MinVolume24h > 0 && s.Signal.Volume24h < f.cfg.MinVolume24h {
		return false
	}
	if f.cfg.MinLiquidity > 0 && s.Signal.Liquidity < f.cfg.MinLiquidity {
		return false
	}
	return true
}
