package world

import (
	"fmt"
	"strings"

	"voxelwire.ai/internal/protocol"
	"voxelwire.ai/internal/sim/bundled"
	"voxelwire.ai/internal/sim/geom"
	"voxelwire.ai/internal/sim/layout"
	"voxelwire.ai/internal/sim/wirenet/redstone"
)

const (
	codeBadRequest    = protocol.ErrBadRequest
	codeInvalidTarget = protocol.ErrInvalidTarget
	codeConflict      = protocol.ErrConflict
	codeInternal      = protocol.ErrInternal
)

// EditError is a rejected edit with its protocol error code.
type EditError struct {
	Code    string
	Message string
}

func (e *EditError) Error() string { return e.Code + ": " + e.Message }

func rejectf(code, format string, args ...any) error {
	return &EditError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// applyEdits runs edits in order. A rejected edit leaves the world untouched and does
// not stop the ones after it.
func (w *World) applyEdits(nowTick uint64, edits []protocol.EditReq) []protocol.EditResult {
	var rejected []protocol.EditResult
	for _, e := range edits {
		err := w.applyEdit(e)
		if err == nil {
			w.audit(nowTick, e, "OK", "")
			continue
		}
		res := protocol.EditResult{ID: e.ID, Code: codeInternal, Message: err.Error()}
		if ee, ok := err.(*EditError); ok {
			res.Code = ee.Code
			res.Message = ee.Message
		}
		rejected = append(rejected, res)
		w.audit(nowTick, e, res.Code, res.Message)
	}
	return rejected
}

func (w *World) audit(nowTick uint64, e protocol.EditReq, result, reason string) {
	if w.auditLogger == nil {
		return
	}
	entry := AuditEntry{
		Tick:   nowTick,
		EditID: e.ID,
		Edit:   e.Type,
		Pos:    e.Pos,
		To:     e.To,
		Result: result,
		Reason: reason,
	}
	if err := w.auditLogger.WriteAudit(entry); err != nil {
		w.log.Printf("tick %d: audit log: %v", nowTick, err)
	}
}

func (w *World) applyEdit(e protocol.EditReq) error {
	pos := geom.PosFromArray(e.Pos)
	switch e.Type {
	case protocol.EditPlaceConnector:
		facing, err := geom.ParseDirection(e.Facing)
		if err != nil {
			return rejectf(codeBadRequest, "%v", err)
		}
		_, err = w.placeConnector(pos, facing)
		return err

	case protocol.EditPlaceDevice:
		out, err := editSignals(e.Signals)
		if err != nil {
			return err
		}
		return w.placeDevice(pos, bundled.NewPort(out))

	case protocol.EditSetDeviceOutput:
		out, err := editSignals(e.Signals)
		if err != nil {
			return err
		}
		port, ok := w.devices[pos]
		if !ok {
			return rejectf(codeInvalidTarget, "no device at %s", pos)
		}
		port.SetOutput(out)
		return nil

	case protocol.EditPlaceBlock:
		kind, err := ParsePlainBlock(e.Kind)
		if err != nil {
			return rejectf(codeBadRequest, "%v", err)
		}
		return w.placePlain(pos, kind)

	case protocol.EditRemoveBlock:
		return w.removeBlock(pos)

	case protocol.EditLink:
		return w.link(pos, geom.PosFromArray(e.To))

	case protocol.EditUnlink:
		return w.unlink(pos, geom.PosFromArray(e.To))

	case protocol.EditConfigureIO:
		c, ok := w.connectors[pos]
		if !ok {
			return rejectf(codeInvalidTarget, "no connector at %s", pos)
		}
		if err := c.ConfigureIO(); err != nil {
			return rejectf(codeConflict, "%v", err)
		}
		return nil

	case protocol.EditSetEmitter:
		side, err := parseSide(e.Side)
		if err != nil {
			return rejectf(codeBadRequest, "%v", err)
		}
		sig, err := editSignals(e.Signals)
		if err != nil {
			return err
		}
		w.emitter.Set(pos, side, sig)
		w.emissionChanged(pos)
		return nil

	case protocol.EditClearEmitter:
		if !w.emitter.Emitting(pos) {
			return rejectf(codeInvalidTarget, "nothing emits at %s", pos)
		}
		w.emitter.Clear(pos)
		w.emissionChanged(pos)
		return nil

	default:
		return rejectf(codeBadRequest, "unknown edit type %q", e.Type)
	}
}

// emissionChanged is a block change at pos as far as connectors are concerned. A
// device at pos is re-polled too, since its connector never looks at providers otherwise.
func (w *World) emissionChanged(pos geom.Pos) {
	if port, ok := w.devices[pos]; ok {
		port.MarkDirty()
	}
	w.MarkBlockForUpdate(pos)
	w.notifyNeighbors(pos)
}

func editSignals(vals []int) (redstone.Signals, error) {
	var s redstone.Signals
	if len(vals) != redstone.Channels {
		return s, rejectf(codeBadRequest, "signals: want %d values, got %d", redstone.Channels, len(vals))
	}
	for i, v := range vals {
		if v < 0 || v > redstone.MaxStrength {
			return s, rejectf(codeBadRequest, "signals[%d]=%d out of range 0..%d", i, v, redstone.MaxStrength)
		}
		s[i] = byte(v)
	}
	return s, nil
}

func parseSide(s string) (geom.Direction, error) {
	if s = strings.TrimSpace(s); s == "" || strings.EqualFold(s, "ANY") {
		return geom.AnySide, nil
	}
	return geom.ParseDirection(s)
}

func signalInts(s redstone.Signals) []int {
	out := make([]int, len(s))
	for i, v := range s {
		out[i] = int(v)
	}
	return out
}

// LayoutEdits turns a layout file into the edits that build it: plain blocks, devices,
// connectors, links, then emitters.
func LayoutEdits(l layout.Layout) []protocol.EditReq {
	var out []protocol.EditReq
	for _, b := range l.Blocks {
		out = append(out, protocol.EditReq{Type: protocol.EditPlaceBlock, Pos: b.Pos.ToArray(), Kind: b.Kind})
	}
	for _, d := range l.Devices {
		out = append(out, protocol.EditReq{Type: protocol.EditPlaceDevice, Pos: d.Pos.ToArray(), Signals: signalInts(d.Output)})
	}
	for _, c := range l.Connectors {
		out = append(out, protocol.EditReq{Type: protocol.EditPlaceConnector, Pos: c.Pos.ToArray(), Facing: c.Facing.String()})
	}
	for _, k := range l.Links {
		out = append(out, protocol.EditReq{Type: protocol.EditLink, Pos: k.A.ToArray(), To: k.B.ToArray()})
	}
	for _, e := range l.Emitters {
		out = append(out, protocol.EditReq{
			Type:    protocol.EditSetEmitter,
			Pos:     e.Pos.ToArray(),
			Side:    e.Side.String(),
			Signals: signalInts(e.Signals),
		})
	}
	return out
}
