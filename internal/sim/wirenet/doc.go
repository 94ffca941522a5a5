// Package wirenet models connectors, the wires between their connection points and the
// local networks (connected components) those wires form.
//
// Each local network owns at most one handler per HandlerKind. Handlers are created for
// the kinds requested by the network's connectors, survive merges and splits on the
// largest fragment, and are told to recompute (MarkDirty) whenever topology changes.
// Everything here runs on the world loop goroutine; there is no locking.
package wirenet
