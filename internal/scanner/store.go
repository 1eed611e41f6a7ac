package scanner

import (
	"sync/atomic"

	"github.com/alejandrodnm/blackedge/internal/domain"
)

// Store es la vista de solo lectura de la última lista aplicada.
// Cada ciclo publica un Snapshot nuevo; nadie lo modifica después.
type Store struct {
	current atomic.Pointer[domain.Snapshot]
}

// NewStore crea un Store vacío.
func NewStore() *Store {
	return &Store{}
}

// Apply publica snap si viene de un ciclo iniciado después del aplicado.
// Devuelve false si se descartó:
//   - un ciclo más antiguo que el actual (straggler)
//   - un resultado stale vacío que borraría una lista no vacía
func (s *Store) Apply(snap *domain.Snapshot) bool {
	if snap == nil {
		return false
	}
	for {
		cur := s.current.Load()
		if cur != nil && snap.Seq <= cur.Seq {
			return false
		}
		if snap.Source == domain.SourceStale && snap.Len() == 0 && cur.Len() > 0 {
			return false
		}
		if s.current.CompareAndSwap(cur, snap) {
			return true
		}
	}
}

// Snapshot devuelve el snapshot aplicado (nil si todavía no hubo ninguno).
func (s *Store) Snapshot() *domain.Snapshot {
	return s.current.Load()
}
