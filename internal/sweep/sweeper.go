// Package sweep corre la limpieza periódica de flujos y sesiones vencidas.
// La validez nunca depende de esto: sólo libera espacio en el store.
package sweep

import (
	"context"
	"time"

	"github.com/dropDatabas3/socialgate/internal/observability/logger"
)

// Target es cualquier cosa que sepa borrar sus registros vencidos.
type Target interface {
	Sweep(ctx context.Context) (int, error)
}

type Deps struct {
	Flows    Target
	Sessions Target
	Interval time.Duration // default 5m
	Timeout  time.Duration // por pasada, default 30s
}

type Sweeper struct {
	targets  []named
	interval time.Duration
	timeout  time.Duration
}

type named struct {
	kind string
	t    Target
}

// Result de una pasada.
type Result struct {
	Flows    int
	Sessions int
}

func New(d Deps) *Sweeper {
	s := &Sweeper{interval: d.Interval, timeout: d.Timeout}
	if s.interval <= 0 {
		s.interval = 5 * time.Minute
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	if d.Flows != nil {
		s.targets = append(s.targets, named{kind: "flows", t: d.Flows})
	}
	if d.Sessions != nil {
		s.targets = append(s.targets, named{kind: "sessions", t: d.Sessions})
	}
	return s
}

// RunOnce hace una pasada. Un target que falla no frena a los demás; se
// devuelve el primer error.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	log := logger.From(ctx).With(logger.Layer("worker"), logger.Component("sweep"))

	var (
		res      Result
		firstErr error
	)
	for _, nt := range s.targets {
		n, err := nt.t.Sweep(ctx)
		if err != nil {
			log.Warn("sweep failed", logger.String("kind", nt.kind), logger.Err(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		switch nt.kind {
		case "flows":
			res.Flows = n
		case "sessions":
			res.Sessions = n
		}
		if n > 0 {
			log.Debug("sweep removed", logger.String("kind", nt.kind), logger.Int("removed", n))
		}
	}
	return res, firstErr
}

// Run barre cada Interval hasta que ctx se cancela. Siempre devuelve nil al
// cancelar, así puede vivir en un errgroup junto al server.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _ = s.RunOnce(ctx)
		}
	}
}
