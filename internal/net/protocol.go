package net

import (
	"errors"
	"fmt"
	"sort"

	"github.com/canvasdock/server/internal/dock"
)

// Reply statuses. The first four mirror dock.Status; closed means the session
// gave up waiting and rejected means the request never reached the dock.
const (
	StatusOK         = "ok"
	StatusSuperseded = "superseded"
	StatusNotOK      = "not_ok"
	StatusFault      = "fault"
	StatusClosed     = "closed"
	StatusRejected   = "rejected"
)

// Request is one client frame. Which fields matter depends on Op. Data is
// base64 in JSON and may hold a zstd frame.
type Request struct {
	Seq       uint64          `json:"seq"`
	Op        string          `json:"op"`
	Data      []byte          `json:"data,omitempty"`
	ID        uint32          `json:"id,omitempty"`
	Asset     uint32          `json:"asset,omitempty"`
	Particle  uint32          `json:"particle,omitempty"`
	Kind      string          `json:"kind,omitempty"`
	Placement *dock.Placement `json:"placement,omitempty"`
	Position  *dock.Vec2      `json:"position,omitempty"`
	Scale     float64         `json:"scale,omitempty"`
	Radius    float64         `json:"radius,omitempty"`
}

// Reply answers exactly one Request, matched by Seq.
type Reply struct {
	Seq     uint64 `json:"seq"`
	Status  string `json:"status"`
	Value   uint32 `json:"value,omitempty"`
	Command uint32 `json:"command,omitempty"`
	Error   string `json:"error,omitempty"`
}

var (
	errUnknownOp    = errors.New("unknown op")
	errMissingField = errors.New("missing field")
)

// DecodeFunc turns a request into the command it asks for.
type DecodeFunc func(req *Request) (dock.Command, error)

// Ops maps op names to request decoders.
type Ops struct {
	decoders map[string]DecodeFunc
}

func NewOps() *Ops {
	return &Ops{decoders: make(map[string]DecodeFunc)}
}

func (o *Ops) Register(op string, fn DecodeFunc) {
	o.decoders[op] = fn
}

// Decode finds the decoder for req.Op and runs it.
func (o *Ops) Decode(req *Request) (dock.Command, error) {
	fn, ok := o.decoders[req.Op]
	if !ok {
		return nil, fmt.Errorf("%w %q", errUnknownOp, req.Op)
	}
	cmd, err := fn(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Op, err)
	}
	return cmd, nil
}

// Names lists the registered ops, sorted.
func (o *Ops) Names() []string {
	names := make([]string, 0, len(o.decoders))
	for n := range o.decoders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultOps registers one op per command class.
func DefaultOps() *Ops {
	o := NewOps()
	o.Register("load_svg", loadVector(dock.FormatSVG))
	o.Register("load_lottie", loadVector(dock.FormatLottie))
	o.Register("load_particle", func(req *Request) (dock.Command, error) {
		if len(req.Data) == 0 {
			return nil, fmt.Errorf("%w: data", errMissingField)
		}
		return dock.LoadParticle{Data: req.Data}, nil
	})
	o.Register("spawn", func(req *Request) (dock.Command, error) {
		kind, ok := dock.ParseKind(req.Kind)
		if !ok {
			return nil, fmt.Errorf("unknown kind %q", req.Kind)
		}
		cmd := dock.SpawnEntity{Asset: req.Asset, Kind: kind, Particle: req.Particle}
		if req.Placement != nil {
			cmd.Placement = *req.Placement
		}
		return cmd, nil
	})
	o.Register("remove", func(req *Request) (dock.Command, error) {
		return dock.RemoveEntity{ID: req.ID}, nil
	})
	o.Register("place", func(req *Request) (dock.Command, error) {
		if req.Placement == nil {
			return nil, fmt.Errorf("%w: placement", errMissingField)
		}
		return dock.SetPlacement{ID: req.ID, Placement: *req.Placement}, nil
	})
	o.Register("camera", func(req *Request) (dock.Command, error) {
		if req.Position == nil {
			return nil, fmt.Errorf("%w: position", errMissingField)
		}
		scale := req.Scale
		if scale == 0 {
			scale = 1
		}
		return dock.SetCamera{Position: *req.Position, Scale: scale}, nil
	})
	o.Register("pick", func(req *Request) (dock.Command, error) {
		if req.Position == nil {
			return nil, fmt.Errorf("%w: position", errMissingField)
		}
		return dock.Pick{Position: *req.Position, Radius: req.Radius}, nil
	})
	return o
}

func loadVector(format dock.VectorFormat) DecodeFunc {
	return func(req *Request) (dock.Command, error) {
		if len(req.Data) == 0 {
			return nil, fmt.Errorf("%w: data", errMissingField)
		}
		return dock.LoadVector{Format: format, Data: req.Data}, nil
	}
}

// replyFor converts a dock result into the wire reply for seq.
func replyFor(seq uint64, command uint32, r dock.Result) Reply {
	rep := Reply{Seq: seq, Command: command}
	switch r.Status {
	case dock.StatusOK:
		rep.Status = StatusOK
		rep.Value = r.Value
	case dock.StatusSuperseded:
		rep.Status = StatusSuperseded
		rep.Value = r.Value
		rep.Error = r.Reason
	case dock.StatusFault:
		rep.Status = StatusFault
		rep.Error = r.Reason
	default:
		rep.Status = StatusNotOK
		rep.Error = r.Reason
	}
	return rep
}
