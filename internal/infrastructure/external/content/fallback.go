package content

import (
	"context"
)

// Fallback serves fixed Spanish copy per role. It never fails; it is both
// the offline provider and the substitute payload when the primary's
// response cannot be parsed.
type Fallback struct{}

// NewFallback creates the fixed-content provider.
func NewFallback() *Fallback {
	return &Fallback{}
}

// fallbackCopy is keyed by role. Unknown roles get the parent copy; parents
// are the primary audience of enriched notifications.
var fallbackCopy = map[string]Generated{
	"parent": {
		Title: "Resumen de progreso",
		Body:  "Revisa el panel para ver el avance reciente del estudiante.",
	},
	"teacher": {
		Title: "Actualización de estudiantes",
		Body:  "Hay novedades en el progreso de tus estudiantes.",
	},
	"psychopedagogue": {
		Title: "Seguimiento de casos",
		Body:  "Hay novedades en los casos que acompañas.",
	},
	"student": {
		Title: "¡Sigue así!",
		Body:  "Continúa con tus actividades para mantener tu progreso.",
	},
}

// Generate implements Provider.
func (f *Fallback) Generate(_ context.Context, req Request) (*Generated, error) {
	tpl, ok := fallbackCopy[req.Role]
	if !ok {
		tpl = fallbackCopy["parent"]
	}
	out := tpl
	out.Source = "fallback"
	return &out, nil
}
