package domain

// DefaultTrialSeconds es la duración por defecto de la ventana de prueba.
const DefaultTrialSeconds = 60

// TrialSession es la ventana de prueba de la sesión actual. Solo vive en memoria.
type TrialSession struct {
	TotalSeconds     int
	SecondsRemaining int
	Upgraded         bool // suscripción activa: la ventana deja de limitar
}

// Expired devuelve true cuando la cuenta atrás llegó a 0.
func (t TrialSession) Expired() bool {
	return t.SecondsRemaining <= 0
}

// CanExecute es true si la sesión permite iniciar trades.
func (t TrialSession) CanExecute() bool {
	return t.Upgraded || !t.Expired()
}
