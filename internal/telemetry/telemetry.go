// Package telemetry streams simulator frames as MAVLink messages so that a
// ground station can follow a run. Positions and attitudes are converted
// from the simulator's z-up frame to NED.
package telemetry

import (
	"math"
	"sync"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
	"github.com/san-kum/quadsim/internal/env"
	"github.com/san-kum/quadsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r3"
)

// SystemID identifies the simulated vehicle on the MAVLink network.
const SystemID = 1

// Writer is the part of a gomavlib node the Publisher needs.
type Writer interface {
	WriteMessageAll(message.Message) error
}

// Publisher is an env.Renderer that writes every Every-th frame to a
// MAVLink writer, with a heartbeat once per simulated second.
type Publisher struct {
	w     Writer
	Every int

	mu            sync.Mutex
	frames        int
	lastHeartbeat float64
	sent          int
	errs          int
	lastErr       error
	closer        func() error
}

func NewPublisher(w Writer) *Publisher {
	return &Publisher{w: w, Every: 1, lastHeartbeat: math.Inf(-1)}
}

// Dial opens a UDP client endpoint, typically a ground station on
// 127.0.0.1:14550.
func Dial(address string) (*Publisher, error) {
	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints: []gomavlib.EndpointConf{
			gomavlib.EndpointUDPClient{Address: address},
		},
		Dialect:     common.Dialect,
		OutVersion:  gomavlib.V2,
		OutSystemID: SystemID,
	})
	if err != nil {
		return nil, err
	}
	p := NewPublisher(node)
	p.closer = func() error {
		node.Close()
		return nil
	}
	return p, nil
}

func (p *Publisher) Draw(f env.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frames++
	if p.Every > 1 && p.frames%p.Every != 1 {
		return
	}
	if f.Time-p.lastHeartbeat >= 1 {
		p.write(heartbeat())
		p.lastHeartbeat = f.Time
	}
	for _, m := range Messages(f) {
		p.write(m)
	}
}

func (p *Publisher) write(m message.Message) {
	if err := p.w.WriteMessageAll(m); err != nil {
		p.errs++
		p.lastErr = err
		return
	}
	p.sent++
}

// Stats returns the number of messages written and failed.
func (p *Publisher) Stats() (sent, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent, p.errs
}

// Err returns the last write error, if any.
func (p *Publisher) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Publisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

func heartbeat() *common.MessageHeartbeat {
	return &common.MessageHeartbeat{
		Type:           common.MAV_TYPE_QUADROTOR,
		Autopilot:      common.MAV_AUTOPILOT_GENERIC,
		BaseMode:       common.MAV_MODE_FLAG_SAFETY_ARMED,
		SystemStatus:   common.MAV_STATE_ACTIVE,
		MavlinkVersion: 3,
	}
}

// Messages converts one frame: attitude, local position, the step cost
// and, for a slung load, the load position and cable state.
func Messages(f env.Frame) []message.Message {
	ms := []message.Message{
		Attitude(f),
		Position(f),
	}
	if !math.IsNaN(f.Cost) {
		ms = append(ms, named(f, "cost", f.Cost))
	}
	if f.Variant == env.SlungLoad {
		load := ToNED(f.Load.Position)
		ms = append(ms,
			&common.MessageDebugVect{
				Name:     "load",
				TimeUsec: uint64(f.Time * 1e6),
				X:        float32(load.X),
				Y:        float32(load.Y),
				Z:        float32(load.Z),
			},
			named(f, "taut", boolFloat(f.Cable == physics.Taut)))
	}
	return ms
}

func Attitude(f env.Frame) *common.MessageAttitudeQuaternion {
	q := f.Vehicle.Orientation
	w := f.Vehicle.BodyRate()
	return &common.MessageAttitudeQuaternion{
		TimeBootMs: bootMs(f.Time),
		Q1:         float32(q.Real),
		Q2:         float32(q.Imag),
		Q3:         float32(-q.Jmag),
		Q4:         float32(-q.Kmag),
		Rollspeed:  float32(w.X),
		Pitchspeed: float32(-w.Y),
		Yawspeed:   float32(-w.Z),
	}
}

func Position(f env.Frame) *common.MessageLocalPositionNed {
	p := ToNED(f.Vehicle.Position)
	v := ToNED(f.Vehicle.LinVel)
	return &common.MessageLocalPositionNed{
		TimeBootMs: bootMs(f.Time),
		X:          float32(p.X),
		Y:          float32(p.Y),
		Z:          float32(p.Z),
		Vx:         float32(v.X),
		Vy:         float32(v.Y),
		Vz:         float32(v.Z),
	}
}

// ToNED rotates a z-up vector by 180° about x.
func ToNED(v r3.Vec) r3.Vec {
	return r3.Vec{X: v.X, Y: -v.Y, Z: -v.Z}
}

func named(f env.Frame, name string, v float64) *common.MessageNamedValueFloat {
	return &common.MessageNamedValueFloat{
		TimeBootMs: bootMs(f.Time),
		Name:       name,
		Value:      float32(v),
	}
}

func bootMs(t float64) uint32 {
	if t < 0 || math.IsNaN(t) {
		return 0
	}
	return uint32(math.Round(t * 1000))
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
